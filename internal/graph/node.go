package graph

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Category names a group of children that is populated independently.
type Category string

const (
	CategoryChildren     Category = "children"
	CategoryColumns      Category = "columns"
	CategoryIndexes      Category = "indexes"
	CategoryExportedKeys Category = "exported keys"
	CategoryImportedKeys Category = "imported keys"
)

// Node is implemented by every entity of the schema graph.
type Node interface {
	UUID() string
	Name() string
	SetName(name string)
	// PhysicalName defaults to Name when no physical name was set.
	PhysicalName() string
	SetPhysicalName(name string)

	Parent() Node
	// Children returns the concatenation of the node's typed child lists in
	// their fixed order.
	Children() []Node

	Populate(ctx context.Context) error
	IsPopulated() bool
	// Inaccessible returns why the children of category could not be loaded,
	// or nil.
	Inaccessible(category Category) error

	AddListener(l Listener)
	RemoveListener(l Listener)

	Begin(label string)
	Commit() error
	Rollback(reason string)

	core() *nodeCore
}

// nodeCore holds the state and behaviour shared by every node. It is
// embedded by the concrete types, which override what differs.
type nodeCore struct {
	self         Node
	uuid         string
	name         string
	physicalName string
	parent       Node

	listeners listenerList
	txDepth   int

	populated  atomic.Bool
	populating atomic.Bool

	mu           sync.Mutex
	inaccessible map[Category]error
	insertMu     sync.Mutex
}

func (n *nodeCore) init(self Node, name string) {
	n.self = self
	n.uuid = uuid.NewString()
	n.name = name
}

func (n *nodeCore) core() *nodeCore { return n }

// UUID returns the identifier assigned when the node was created.
func (n *nodeCore) UUID() string { return n.uuid }

// Name returns the logical name.
func (n *nodeCore) Name() string { return n.name }

// SetName renames the node.
func (n *nodeCore) SetName(name string) {
	if name == n.name {
		return
	}
	old := n.name
	oldPhysical := n.self.PhysicalName()
	n.name = name
	n.firePropertyChange(PropName, old, name)
	if n.physicalName == "" && oldPhysical != name {
		n.firePropertyChange(PropPhysicalName, oldPhysical, name)
	}
}

// PhysicalName returns the name used in the database, which defaults to Name.
func (n *nodeCore) PhysicalName() string {
	if n.physicalName == "" {
		return n.name
	}
	return n.physicalName
}

// SetPhysicalName sets the name used in the database.
func (n *nodeCore) SetPhysicalName(name string) {
	old := n.self.PhysicalName()
	n.physicalName = name
	if cur := n.self.PhysicalName(); cur != old {
		n.firePropertyChange(PropPhysicalName, old, cur)
	}
}

// Parent returns the owning node, or nil.
func (n *nodeCore) Parent() Node { return n.parent }

// Children returns nil; nodes with children override it.
func (n *nodeCore) Children() []Node { return nil }

// Populate is a no-op for nodes whose children are always authoritative.
func (n *nodeCore) Populate(context.Context) error { return nil }

// IsPopulated reports whether the children have been loaded.
func (n *nodeCore) IsPopulated() bool { return n.populated.Load() }

// Inaccessible returns why the children of category could not be loaded, or
// nil.
func (n *nodeCore) Inaccessible(category Category) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.inaccessible[category]
}

func (n *nodeCore) setInaccessible(category Category, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.inaccessible == nil {
		n.inaccessible = make(map[Category]error)
	}
	n.inaccessible[category] = err
}

// AddListener registers l for events of this node only.
func (n *nodeCore) AddListener(l Listener) { n.listeners.add(l) }

// RemoveListener unregisters l.
func (n *nodeCore) RemoveListener(l Listener) { n.listeners.remove(l) }

// Begin opens a (possibly nested) transaction. Only the outermost Begin is
// announced to listeners.
func (n *nodeCore) Begin(label string) {
	n.txDepth++
	if n.txDepth == 1 {
		e := TransactionEvent{Source: n.self, Message: label}
		for _, l := range n.listeners.snapshot() {
			l.TransactionStarted(e)
		}
	}
}

// Commit closes the innermost transaction. Listeners hear about the end of
// the outermost one only.
func (n *nodeCore) Commit() error {
	if n.txDepth == 0 {
		return fmt.Errorf("%w (%s)", ErrNoTransaction, n.self.Name())
	}
	n.txDepth--
	if n.txDepth == 0 {
		e := TransactionEvent{Source: n.self}
		for _, l := range n.listeners.snapshot() {
			l.TransactionEnded(e)
		}
	}
	return nil
}

// Rollback abandons every open transaction level at once.
func (n *nodeCore) Rollback(reason string) {
	if n.txDepth == 0 {
		return
	}
	n.txDepth = 0
	e := TransactionEvent{Source: n.self, Message: reason}
	for _, l := range n.listeners.snapshot() {
		l.TransactionRolledBack(e)
	}
}

func (n *nodeCore) inTransaction() bool { return n.txDepth > 0 }

func (n *nodeCore) firePropertyChange(property string, old, new any) {
	e := PropertyChange{Source: n.self, Property: property, Old: old, New: new}
	for _, l := range n.listeners.snapshot() {
		l.PropertyChanged(e)
	}
}

func (n *nodeCore) fireChildAdded(child Node, index int) {
	e := ChildEvent{Source: n.self, Child: child, Index: index}
	for _, l := range n.listeners.snapshot() {
		l.ChildAdded(e)
	}
}

func (n *nodeCore) fireChildRemoved(child Node, index int) {
	e := ChildEvent{Source: n.self, Child: child, Index: index}
	for _, l := range n.listeners.snapshot() {
		l.ChildRemoved(e)
	}
}

// proposeRemoval is the first phase of every public removal: it asks each
// vetoing listener and returns the first veto.
func (n *nodeCore) proposeRemoval(child Node, index int) error {
	e := ChildEvent{Source: n.self, Child: child, Index: index}
	for _, l := range n.listeners.snapshot() {
		if v, ok := l.(Vetoer); ok {
			if err := v.ChildRemoving(e); err != nil {
				return err
			}
		}
	}
	return nil
}

// vetoed logs a refused removal. Vetoes are an expected outcome, not errors.
func vetoed(parent, child Node, err error) {
	envOf(parent).Logger.Debug("removal vetoed",
		"parent", parent.Name(), "child", child.Name(), "reason", err)
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the node's children.
func Walk(n Node, fn func(Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children() {
		Walk(c, fn)
	}
}

// applyFunc inserts fetched children into the graph and returns the events
// to fire for them. It must validate before mutating so that an error leaves
// the graph untouched.
type applyFunc func() ([]func(), error)

// added returns the deferred ChildAdded notification for child.
func added(parent, child Node, index int) func() {
	return func() { parent.core().fireChildAdded(child, index) }
}

// runPopulate is the single-flight body shared by every Populate variant.
// fetch runs on the caller's goroutine and may block on I/O; the apply step
// it returns runs on the env's dispatcher, after which done flips and the
// ChildAdded events for the whole batch are fired.
func runPopulate(ctx context.Context, n Node, category Category, done, inFlight *atomic.Bool,
	fetch func(ctx context.Context) (applyFunc, error)) error {
	if done.Load() || !inFlight.CompareAndSwap(false, true) {
		return nil
	}
	env := envOf(n)

	apply, err := fetch(ctx)
	if err == nil && apply != nil {
		dispatchErr := env.Dispatcher.Dispatch(ctx, func(ctx context.Context) {
			lock := insertLock(n)
			lock.Lock()
			events, applyErr := apply()
			lock.Unlock()
			if applyErr != nil {
				err = applyErr
				return
			}

			done.Store(true)
			if len(events) == 0 {
				return
			}
			n.Begin(fmt.Sprintf("Populating %s of %s", category, n.Name()))
			for _, fire := range events {
				fire()
			}
			n.Commit()
		})
		if dispatchErr != nil {
			err = dispatchErr
		}
	}

	if err != nil {
		perr := &PopulateError{Node: n, Category: category, Err: err}
		n.core().setInaccessible(category, perr)
		done.Store(true)
		env.Logger.Warn("populate failed", "node", n.Name(), "category", string(category), "error", err)
		return perr
	}
	done.Store(true)
	return nil
}

// insertLock serializes population inserts per database. Nodes outside a
// database fall back to a lock of their own.
func insertLock(n Node) sync.Locker {
	if db := databaseOf(n); db != nil {
		return &db.insertMu
	}
	return &n.core().insertMu
}

// setProp assigns v to *field and fires prop when the value changed.
func setProp[T comparable](n *nodeCore, field *T, v T, prop string) {
	if *field == v {
		return
	}
	old := *field
	*field = v
	n.firePropertyChange(prop, old, v)
}
