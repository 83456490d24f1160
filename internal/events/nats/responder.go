package nats

import (
	"context"
	"log/slog"

	natsio "github.com/nats-io/nats.go"

	"github.com/sheikh-saqib/transactional-accounts-service/internal/bank"
)

// BalanceResponder answers balance lookups over NATS request/reply. The
// request payload is an account id; the reply is the balance as a decimal
// string, or "error: ..." when the lookup fails.
type BalanceResponder struct {
	conn    *natsio.Conn
	subject string
	service *bank.Service
	logger  *slog.Logger

	sub *natsio.Subscription
}

func NewBalanceResponder(conn *natsio.Conn, subject string, service *bank.Service, logger *slog.Logger) *BalanceResponder {
	return &BalanceResponder{
		conn:    conn,
		subject: subject,
		service: service,
		logger:  logger,
	}
}

// Start subscribes and serves until the context is cancelled.
func (r *BalanceResponder) Start(ctx context.Context) error {
	sub, err := r.conn.Subscribe(r.subject, func(msg *natsio.Msg) {
		accountID := string(msg.Data)
		balance, err := r.service.Balance(ctx, accountID)
		if err != nil {
			r.logger.Warn("balance lookup failed", "account_id", accountID, "error", err)
			r.respond(msg, "error: "+err.Error())
			return
		}
		r.respond(msg, balance.StringFixed(2))
	})
	if err != nil {
		return err
	}
	r.sub = sub
	r.logger.Info("balance responder listening", "subject", r.subject)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Stop drains the subscription.
func (r *BalanceResponder) Stop() {
	if r.sub != nil {
		if err := r.sub.Drain(); err != nil {
			r.logger.Warn("draining balance subscription failed", "error", err)
		}
		r.sub = nil
	}
}

func (r *BalanceResponder) respond(msg *natsio.Msg, payload string) {
	if err := msg.Respond([]byte(payload)); err != nil {
		r.logger.Warn("failed to respond to balance request", "error", err)
	}
}
