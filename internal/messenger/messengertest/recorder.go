// Package messengertest provides an in-memory Messenger that records every
// call, for component and end-to-end tests.
package messengertest

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"relay/internal/messenger"
)

var ErrInjected = errors.New("injected transport failure")

type Delivery struct {
	RecipientID string
	Content     messenger.ContentRef
	Controls    []messenger.Button
	Handle      messenger.Handle
}

type Strip struct {
	Message messenger.Handle
	Note    string
}

type Publication struct {
	DestinationID string
	Source        messenger.Handle
	Signature     string
}

type Text struct {
	RecipientID string
	Text        string
}

type PromptCall struct {
	RecipientID string
	Text        string
	Controls    []messenger.Button
	Handle      messenger.Handle
}

type AnswerCall struct {
	Callback messenger.Callback
	Text     string
	Alert    bool
}

// Recorder is safe for concurrent use.
type Recorder struct {
	mu  sync.Mutex
	seq int

	deliveries   []Delivery
	strips       []Strip
	publications []Publication
	texts        []Text
	prompts      []PromptCall
	answers      []AnswerCall

	failDeliver map[string]bool
	failStrip   map[messenger.Handle]bool
	failPublish bool
}

func New() *Recorder {
	return &Recorder{
		failDeliver: make(map[string]bool),
		failStrip:   make(map[messenger.Handle]bool),
	}
}

var _ messenger.Messenger = (*Recorder)(nil)

// FailDeliveriesTo makes Deliver fail for the given recipients.
func (r *Recorder) FailDeliveriesTo(recipientIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range recipientIDs {
		r.failDeliver[id] = true
	}
}

func (r *Recorder) FailStrip(h messenger.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failStrip[h] = true
}

func (r *Recorder) FailPublish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failPublish = true
}

func (r *Recorder) Deliver(_ context.Context, recipientID string, content messenger.ContentRef, controls []messenger.Button) (messenger.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failDeliver[recipientID] {
		return messenger.Handle{}, ErrInjected
	}
	h := r.nextHandle("dm-" + recipientID)
	r.deliveries = append(r.deliveries, Delivery{RecipientID: recipientID, Content: content, Controls: controls, Handle: h})
	return h, nil
}

func (r *Recorder) StripControls(_ context.Context, message messenger.Handle, note string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failStrip[message] {
		return ErrInjected
	}
	r.strips = append(r.strips, Strip{Message: message, Note: note})
	return nil
}

func (r *Recorder) Publish(_ context.Context, destinationID string, source messenger.Handle, signature string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failPublish {
		return ErrInjected
	}
	r.publications = append(r.publications, Publication{DestinationID: destinationID, Source: source, Signature: signature})
	return nil
}

func (r *Recorder) SendText(_ context.Context, recipientID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, Text{RecipientID: recipientID, Text: text})
	return nil
}

func (r *Recorder) Prompt(_ context.Context, recipientID, text string, controls []messenger.Button) (messenger.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.nextHandle("dm-" + recipientID)
	r.prompts = append(r.prompts, PromptCall{RecipientID: recipientID, Text: text, Controls: controls, Handle: h})
	return h, nil
}

func (r *Recorder) Answer(_ context.Context, cb messenger.Callback, text string, alert bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers = append(r.answers, AnswerCall{Callback: cb, Text: text, Alert: alert})
	return nil
}

func (r *Recorder) Escape(text string) string {
	return escaper.Replace(text)
}

var escaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`")

// nextHandle must be called with mu held.
func (r *Recorder) nextHandle(channel string) messenger.Handle {
	r.seq++
	return messenger.Handle{ChannelID: channel, MessageID: strconv.Itoa(r.seq)}
}

func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

func (r *Recorder) Strips() []Strip {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Strip(nil), r.strips...)
}

func (r *Recorder) Publications() []Publication {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Publication(nil), r.publications...)
}

func (r *Recorder) Texts() []Text {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Text(nil), r.texts...)
}

// TextsTo returns the texts sent to one recipient, in order.
func (r *Recorder) TextsTo(recipientID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, t := range r.texts {
		if t.RecipientID == recipientID {
			out = append(out, t.Text)
		}
	}
	return out
}

func (r *Recorder) Prompts() []PromptCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PromptCall(nil), r.prompts...)
}

func (r *Recorder) Answers() []AnswerCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AnswerCall(nil), r.answers...)
}

// DeliveryTo returns the copy delivered to recipientID, if any.
func (r *Recorder) DeliveryTo(recipientID string) (Delivery, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.deliveries {
		if d.RecipientID == recipientID {
			return d, true
		}
	}
	return Delivery{}, false
}

// StrippedNotes returns every note appended to message, in order.
func (r *Recorder) StrippedNotes(message messenger.Handle) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.strips {
		if s.Message == message {
			out = append(out, s.Note)
		}
	}
	return out
}

// Reset forgets recorded calls but keeps injected failures.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = nil
	r.strips = nil
	r.publications = nil
	r.texts = nil
	r.prompts = nil
	r.answers = nil
}
