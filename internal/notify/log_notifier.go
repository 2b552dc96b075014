// Package notify delivers temporary passwords produced by credential recovery.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"login-service/internal/util"

	"go.uber.org/zap"
)

// LogNotifier simulates delivery for development. The simulated email is
// written to out (normally stdout) and never to the structured log.
type LogNotifier struct {
	mu     sync.Mutex
	out    io.Writer
	logger *zap.Logger
}

func NewLogNotifier(out io.Writer, logger *zap.Logger) *LogNotifier {
	return &LogNotifier{out: out, logger: logger}
}

func (n *LogNotifier) Deliver(ctx context.Context, identity, secret string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.mu.Lock()
	_, err := fmt.Fprintf(n.out,
		"=== SIMULATED EMAIL ===\nTo: %s\nSubject: %s\nTemporary password: %s\n=======================\n",
		identity, resetSubject, secret)
	n.mu.Unlock()
	if err != nil {
		return err
	}

	n.logger.Info("Simulated password reset email", util.Email("to", identity))
	return nil
}
