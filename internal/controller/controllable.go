package controller

import (
	"context"
	"fmt"

	"github.com/sumandas0/notionmbse/internal/models"
	"github.com/sumandas0/notionmbse/pkg/utils"
)

// Controllable is a record bound to the controller that persists it. The
// controller is shared and not owned. Every operation on a detached record
// fails with a configuration error before any backend is contacted.
type Controllable[T models.Record] struct {
	model      *models.Model[T]
	item       T
	controller Controller[T]
}

func NewControllable[T models.Record](model *models.Model[T], item T) *Controllable[T] {
	return &Controllable[T]{model: model, item: item}
}

func NewControllableElement(e *models.Element) *Controllable[*models.Element] {
	return NewControllable(models.ElementModel, e)
}

func (c *Controllable[T]) UseController(controller Controller[T]) {
	c.controller = controller
}

func (c *Controllable[T]) Controller() Controller[T] {
	return c.controller
}

func (c *Controllable[T]) Item() T {
	return c.item
}

func (c *Controllable[T]) attached(operation string) error {
	if c.controller == nil {
		return utils.NewConfigurationError(fmt.Sprintf("%s %s has no controller to %s", c.model.Name(), c.item.GetID(), operation))
	}
	return nil
}

// snapshot copies the record so the backend never aliases local state.
func (c *Controllable[T]) snapshot() (T, error) {
	fields, err := c.model.Dump(c.item)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.model.Decode(fields)
}

// Create persists the record and copies back every field the backend
// returned, including an assigned id.
func (c *Controllable[T]) Create(ctx context.Context) (bool, error) {
	if err := c.attached("create"); err != nil {
		return false, err
	}
	snap, err := c.snapshot()
	if err != nil {
		return false, err
	}
	created, err := c.controller.Create(ctx, snap)
	if err != nil {
		return false, err
	}
	c.model.Copy(c.item, created)
	return true, nil
}

// Read replaces local state with the stored record. It reports false and
// leaves the record untouched when nothing is stored under its id.
func (c *Controllable[T]) Read(ctx context.Context) (bool, error) {
	if err := c.attached("read"); err != nil {
		return false, err
	}
	stored, found, err := c.controller.Read(ctx, c.item.GetID())
	if err != nil || !found {
		return false, err
	}
	c.model.Copy(c.item, stored)
	return true, nil
}

// Update pushes local state. Server side changes are not pulled back; call
// Read to observe them.
func (c *Controllable[T]) Update(ctx context.Context) (bool, error) {
	if err := c.attached("update"); err != nil {
		return false, err
	}
	snap, err := c.snapshot()
	if err != nil {
		return false, err
	}
	return c.controller.Update(ctx, snap)
}

func (c *Controllable[T]) Delete(ctx context.Context) (bool, error) {
	if err := c.attached("delete"); err != nil {
		return false, err
	}
	return c.controller.Delete(ctx, c.item.GetID())
}

func (c *Controllable[T]) ToMap() (map[string]any, error) {
	return c.model.Dump(c.item)
}

func (c *Controllable[T]) String() string {
	if s, ok := any(c.item).(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%s(%s)", c.model.Name(), c.item.GetID())
}
