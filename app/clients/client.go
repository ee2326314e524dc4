package clients

import (
	"context"

	"GoEvolveAI/app/iteration"
	"GoEvolveAI/app/storage"
)

// Program is the part of the coordinator chat clients talk to.
type Program interface {
	SubmitInput(ctx context.Context, profileID, text string) (storage.Input, error)
	History(ctx context.Context) (string, error)
}

type Interface interface {
	iteration.Notifier
	Subscribe(Program) error
}

type Client struct {
	program Program
}
