package graph

import "sync"

// Property names carried by PropertyChange events.
const (
	PropName          = "name"
	PropPhysicalName  = "physicalName"
	PropRemarks       = "remarks"
	PropObjectType    = "objectType"
	PropColumnOrder   = "columnOrder"
	PropPosition      = "position"
	PropTypeCode      = "type"
	PropNativeType    = "sourceDataTypeName"
	PropUpstreamType  = "upstreamType"
	PropPrecision     = "precision"
	PropScale         = "scale"
	PropNullable      = "nullable"
	PropDefault       = "defaultValue"
	PropAutoIncrement = "autoIncrement"
	PropSequenceName  = "autoIncrementSequenceName"
	PropRefCount      = "referenceCount"
	PropCondition     = "condition"
	PropUnique        = "unique"
	PropClustered     = "clustered"
	PropQualifier     = "qualifier"
	PropIndexType     = "indexType"
	PropFilter        = "filterCondition"
	PropSortOrder     = "sortOrder"
	PropIdentifying   = "identifying"
	PropUpdateRule    = "updateRule"
	PropDeleteRule    = "deleteRule"
	PropDeferrability = "deferrability"
	PropPKCardinality = "pkCardinality"
	PropFKCardinality = "fkCardinality"
)

// PropertyChange is fired after a property of Source changed.
type PropertyChange struct {
	Source   Node
	Property string
	Old      any
	New      any
}

// ChildEvent is fired when Child is added to, removed from, or proposed for
// removal from Source. Index is the child's position within its typed list.
type ChildEvent struct {
	Source Node
	Child  Node
	Index  int
}

// TransactionEvent brackets a batch of changes on Source.
type TransactionEvent struct {
	Source  Node
	Message string
}

// Listener receives every change notification of the nodes it is registered
// on. Implementations must be comparable (pointer types) so they can be
// removed again.
type Listener interface {
	PropertyChanged(e PropertyChange)
	ChildAdded(e ChildEvent)
	ChildRemoved(e ChildEvent)
	TransactionStarted(e TransactionEvent)
	TransactionEnded(e TransactionEvent)
	TransactionRolledBack(e TransactionEvent)
}

// Vetoer is implemented by listeners that want a say before a child is
// removed. Returning an error aborts the removal with no state change.
type Vetoer interface {
	ChildRemoving(e ChildEvent) error
}

// ListenerFuncs adapts optional callbacks to Listener and Vetoer. Register
// it by pointer.
type ListenerFuncs struct {
	OnPropertyChange func(PropertyChange)
	OnChildAdded     func(ChildEvent)
	OnChildRemoved   func(ChildEvent)
	OnChildRemoving  func(ChildEvent) error
	OnTxStarted      func(TransactionEvent)
	OnTxEnded        func(TransactionEvent)
	OnTxRolledBack   func(TransactionEvent)
}

// PropertyChanged calls OnPropertyChange when set.
func (f *ListenerFuncs) PropertyChanged(e PropertyChange) {
	if f.OnPropertyChange != nil {
		f.OnPropertyChange(e)
	}
}

// ChildAdded calls OnChildAdded when set.
func (f *ListenerFuncs) ChildAdded(e ChildEvent) {
	if f.OnChildAdded != nil {
		f.OnChildAdded(e)
	}
}

// ChildRemoved calls OnChildRemoved when set.
func (f *ListenerFuncs) ChildRemoved(e ChildEvent) {
	if f.OnChildRemoved != nil {
		f.OnChildRemoved(e)
	}
}

// ChildRemoving calls OnChildRemoving when set and accepts the removal
// otherwise.
func (f *ListenerFuncs) ChildRemoving(e ChildEvent) error {
	if f.OnChildRemoving != nil {
		return f.OnChildRemoving(e)
	}
	return nil
}

// TransactionStarted calls OnTxStarted when set.
func (f *ListenerFuncs) TransactionStarted(e TransactionEvent) {
	if f.OnTxStarted != nil {
		f.OnTxStarted(e)
	}
}

// TransactionEnded calls OnTxEnded when set.
func (f *ListenerFuncs) TransactionEnded(e TransactionEvent) {
	if f.OnTxEnded != nil {
		f.OnTxEnded(e)
	}
}

// TransactionRolledBack calls OnTxRolledBack when set.
func (f *ListenerFuncs) TransactionRolledBack(e TransactionEvent) {
	if f.OnTxRolledBack != nil {
		f.OnTxRolledBack(e)
	}
}

// listenerList is a registration-ordered set of listeners. Delivery iterates
// over a snapshot so listeners may add or remove listeners while being
// notified.
type listenerList struct {
	mu    sync.Mutex
	items []Listener
}

func (l *listenerList) add(x Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, have := range l.items {
		if have == x {
			return
		}
	}
	l.items = append(l.items, x)
}

func (l *listenerList) remove(x Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, have := range l.items {
		if have == x {
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			return
		}
	}
}

func (l *listenerList) contains(x Listener) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, have := range l.items {
		if have == x {
			return true
		}
	}
	return false
}

func (l *listenerList) snapshot() []Listener {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Listener, len(l.items))
	copy(out, l.items)
	return out
}
