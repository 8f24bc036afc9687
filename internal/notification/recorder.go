package notification

import (
	"context"
	"sync"
)

// Mail is one notification captured by a Recorder.
type Mail struct {
	Subject  string
	Messages []string
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu    sync.Mutex
	mails []Mail
}

func (r *Recorder) SendErrorMail(ctx context.Context, subject string, messages ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mails = append(r.mails, Mail{Subject: subject, Messages: append([]string(nil), messages...)})
}

func (r *Recorder) Mails() []Mail {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Mail(nil), r.mails...)
}
