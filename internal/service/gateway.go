package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"daily-tracker/internal/docstore"
	"daily-tracker/internal/logging"
	"daily-tracker/internal/model"
)

// TransactionInput represents data required to record a transaction.
type TransactionInput struct {
	Description string
	Amount      float64
	Vendor      string
	Type        string
}

// TaskSet is the synced task list the gateway checks ids against.
type TaskSet interface {
	Items() []model.Task
}

// Gateway validates user actions and writes them to the store. Nothing is
// returned on success; results arrive with the next snapshot.
type Gateway struct {
	store docstore.Store
	paths Paths
	uid   string
	tasks TaskSet
	log   logging.Logger
	now   func() time.Time
}

func NewGateway(store docstore.Store, paths Paths, uid string, tasks TaskSet, log logging.Logger) *Gateway {
	return &Gateway{
		store: store,
		paths: paths,
		uid:   uid,
		tasks: tasks,
		log:   log.With("uid", uid),
		now:   time.Now,
	}
}

func (g *Gateway) AddTask(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}

	data := model.NewTaskData(text, model.Millis(g.now()))
	if _, err := g.store.Add(ctx, g.paths.Tasks(g.uid), data); err != nil {
		g.log.Error(ctx, "add task", "err", err)
		return writeFailed("add task", err)
	}
	return nil
}

// ToggleTask flips completion of a task in the synced set.
func (g *Gateway) ToggleTask(ctx context.Context, id string) error {
	task, ok := g.findTask(id)
	if !ok {
		g.log.Debug(ctx, "toggle skipped, task not in synced set", "id", id)
		return ErrTaskNotFound
	}

	err := g.store.Update(ctx, g.paths.Task(g.uid, id), docstore.Data{"completed": !task.Completed})
	if errors.Is(err, docstore.ErrNotFound) {
		g.log.Debug(ctx, "toggle skipped, task deleted in the store", "id", id)
		return ErrTaskNotFound
	}
	if err != nil {
		g.log.Error(ctx, "toggle task", "id", id, "err", err)
		return writeFailed("toggle task", err)
	}
	return nil
}

func (g *Gateway) DeleteTask(ctx context.Context, id string) error {
	if _, ok := g.findTask(id); !ok {
		g.log.Debug(ctx, "delete skipped, task not in synced set", "id", id)
		return ErrTaskNotFound
	}

	if err := g.store.Delete(ctx, g.paths.Task(g.uid, id)); err != nil {
		g.log.Error(ctx, "delete task", "id", id, "err", err)
		return writeFailed("delete task", err)
	}
	return nil
}

func (g *Gateway) AddTransaction(ctx context.Context, input TransactionInput) error {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return ErrEmptyText
	}
	if math.IsNaN(input.Amount) || math.IsInf(input.Amount, 0) || input.Amount <= 0 {
		return ErrInvalidAmount
	}
	typ, err := model.ParseTransactionType(input.Type)
	if err != nil {
		return ErrInvalidType
	}

	data := model.NewTransactionData(
		description,
		decimal.NewFromFloat(input.Amount),
		strings.TrimSpace(input.Vendor),
		typ,
		model.Millis(g.now()),
	)
	if _, err := g.store.Add(ctx, g.paths.Transactions(g.uid), data); err != nil {
		g.log.Error(ctx, "add transaction", "err", err)
		return writeFailed("add transaction", err)
	}
	return nil
}

func (g *Gateway) findTask(id string) (model.Task, bool) {
	if id == "" {
		return model.Task{}, false
	}
	for _, task := range g.tasks.Items() {
		if task.ID == id {
			return task, true
		}
	}
	return model.Task{}, false
}
