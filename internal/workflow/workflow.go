// Package workflow drives the view/create/edit/delete lifecycle shared by
// categories, themes and contents.
package workflow

import (
	"context"
	"errors"
	"log"
	"sync"

	"medialib/client/internal/api"
	"medialib/client/internal/catalog"
	"medialib/client/internal/notify"
)

type Mode string

const (
	ModeClosed   Mode = "closed"
	ModeViewing  Mode = "viewing"
	ModeCreating Mode = "creating"
	ModeEditing  Mode = "editing"
	ModeDeleting Mode = "deleting"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindRule       Kind = "rule"
	KindTransport  Kind = "transport"
)

// Error is a failed submission. Message is what the user is shown.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func validationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

var ErrInvalidState = errors.New("workflow: action not available in current state")

// Entity is anything the API identifies by id.
type Entity interface {
	EntityID() string
}

// Gateway is the write side of an entity gateway.
type Gateway[E any, In any] interface {
	Create(ctx context.Context, in In) api.Result[E]
	Update(ctx context.Context, id string, in In) api.Result[E]
	Remove(ctx context.Context, id string) api.Result[api.Empty]
}

type Getter[E any] interface {
	Get(ctx context.Context, id string) api.Result[E]
}

type Refresher interface {
	Refresh(ctx context.Context) (catalog.Snapshot, error)
}

// Descriptor is everything that differs between entity types.
type Descriptor[E Entity, In any] struct {
	Noun     string
	Gateway  Gateway[E, In]
	Validate func(in In) error
	// Guard runs after validation and before the write, and may call the API.
	Guard func(ctx context.Context, in In) error
}

// Controller is one modal workflow. The zero Mode is ModeClosed.
type Controller[E Entity, In any] struct {
	desc     Descriptor[E, In]
	refresh  Refresher
	notifier notify.Notifier

	mu     sync.Mutex
	mode   Mode
	target E
}

func NewController[E Entity, In any](desc Descriptor[E, In], refresh Refresher, notifier notify.Notifier) *Controller[E, In] {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Controller[E, In]{
		desc:     desc,
		refresh:  refresh,
		notifier: notifier,
		mode:     ModeClosed,
	}
}

func (c *Controller[E, In]) Noun() string {
	return c.desc.Noun
}

// State returns the mode and the entity being acted on. The entity is the
// zero value when closed or creating.
func (c *Controller[E, In]) State() (Mode, E) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode, c.target
}

func (c *Controller[E, In]) Mode() Mode {
	mode, _ := c.State()
	return mode
}

func (c *Controller[E, In]) OpenView(e E)   { c.open(ModeViewing, e) }
func (c *Controller[E, In]) OpenEdit(e E)   { c.open(ModeEditing, e) }
func (c *Controller[E, In]) OpenDelete(e E) { c.open(ModeDeleting, e) }

func (c *Controller[E, In]) OpenCreate() {
	var zero E
	c.open(ModeCreating, zero)
}

// Close discards whatever was in progress.
func (c *Controller[E, In]) Close() {
	var zero E
	c.open(ModeClosed, zero)
}

func (c *Controller[E, In]) open(mode Mode, e E) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	c.target = e
}

// Submit saves in while creating or editing. On success the catalog is
// refreshed once, the controller closes and the saved entity is returned. On
// failure the state is left as it was and a *Error is returned.
func (c *Controller[E, In]) Submit(ctx context.Context, in In) (E, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero E
	if c.mode != ModeCreating && c.mode != ModeEditing {
		return zero, ErrInvalidState
	}

	if c.desc.Validate != nil {
		if err := c.desc.Validate(in); err != nil {
			return zero, c.fail(err)
		}
	}
	if c.desc.Guard != nil {
		if err := c.desc.Guard(ctx, in); err != nil {
			return zero, c.fail(err)
		}
	}

	var (
		res  api.Result[E]
		verb string
	)
	if c.mode == ModeCreating {
		res = c.desc.Gateway.Create(ctx, in)
		verb = "created"
	} else {
		res = c.desc.Gateway.Update(ctx, c.target.EntityID(), in)
		verb = "updated"
	}
	if !res.OK() {
		return zero, c.fail(resultError(res, "Failed to save "+c.desc.Noun))
	}

	c.finish(ctx, notify.Capitalize(c.desc.Noun)+" "+verb+" successfully")
	return res.Data, nil
}

// ConfirmDelete removes the entity chosen with OpenDelete.
func (c *Controller[E, In]) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeDeleting {
		return ErrInvalidState
	}
	res := c.desc.Gateway.Remove(ctx, c.target.EntityID())
	if !res.OK() {
		return c.fail(resultError(res, "Failed to delete "+c.desc.Noun))
	}
	c.finish(ctx, "Deleted "+c.desc.Noun+" successfully")
	return nil
}

// finish runs with c.mu held.
func (c *Controller[E, In]) finish(ctx context.Context, message string) {
	if c.refresh != nil {
		if _, err := c.refresh.Refresh(ctx); err != nil {
			log.Printf("workflow: refresh after %s change: %v", c.desc.Noun, err)
		}
	}
	var zero E
	c.mode = ModeClosed
	c.target = zero
	c.notifier.Notify(notify.LevelSuccess, message)
}

func (c *Controller[E, In]) fail(err error) error {
	var werr *Error
	if !errors.As(err, &werr) {
		werr = &Error{Kind: KindTransport, Message: err.Error()}
	}
	c.notifier.Notify(notify.LevelError, werr.Message)
	return werr
}

// resultError prefers the server's own message over fallback.
func resultError[T any](res api.Result[T], fallback string) *Error {
	if res.Err != nil {
		log.Printf("workflow: %s: %v", fallback, res.Err)
		return &Error{Kind: KindTransport, Message: fallback}
	}
	if msg := notify.Capitalize(res.Message); msg != "" {
		return &Error{Kind: KindRule, Status: res.Status, Message: msg}
	}
	return &Error{Kind: KindTransport, Status: res.Status, Message: fallback}
}
