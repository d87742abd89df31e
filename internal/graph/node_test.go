package graph

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/faucetdb/schemagraph/internal/model"
)

func intCol(name string) *Column {
	return NewColumn(name, model.TypeInteger, "INTEGER", 10, 0)
}

// recorder collects a flat log of every event it receives.
type recorder struct {
	events []string
}

func (r *recorder) PropertyChanged(e PropertyChange) {
	r.events = append(r.events, "prop:"+e.Property)
}
func (r *recorder) ChildAdded(e ChildEvent)   { r.events = append(r.events, "added:"+e.Child.Name()) }
func (r *recorder) ChildRemoved(e ChildEvent) { r.events = append(r.events, "removed:"+e.Child.Name()) }
func (r *recorder) TransactionStarted(e TransactionEvent) {
	r.events = append(r.events, "begin:"+e.Message)
}
func (r *recorder) TransactionEnded(TransactionEvent) { r.events = append(r.events, "end") }
func (r *recorder) TransactionRolledBack(e TransactionEvent) {
	r.events = append(r.events, "rollback:"+e.Message)
}

func (r *recorder) count(event string) int {
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func TestTransactionsNest(t *testing.T) {
	tbl := NewTable("t")
	rec := &recorder{}
	tbl.AddListener(rec)

	tbl.Begin("outer")
	tbl.Begin("inner")
	if err := tbl.AddColumn(intCol("a")); err != nil {
		t.Fatalf("AddColumn: %v", err)
	}
	if err := tbl.Commit(); err != nil {
		t.Fatalf("inner commit: %v", err)
	}
	if err := tbl.Commit(); err != nil {
		t.Fatalf("outer commit: %v", err)
	}

	want := []string{"begin:outer", "added:a", "end"}
	if !slices.Equal(rec.events, want) {
		t.Errorf("events = %v, want %v", rec.events, want)
	}
}

func TestCommitWithoutBegin(t *testing.T) {
	err := NewTable("t").Commit()
	if !errors.Is(err, ErrNoTransaction) {
		t.Fatalf("Commit() error = %v, want ErrNoTransaction", err)
	}
	if !errors.Is(err, ErrInvariant) {
		t.Errorf("ErrNoTransaction should wrap ErrInvariant")
	}
}

func TestRollbackUnwindsAllLevels(t *testing.T) {
	tbl := NewTable("t")
	rec := &recorder{}
	tbl.AddListener(rec)

	tbl.Begin("outer")
	tbl.Begin("inner")
	tbl.Rollback("boom")
	tbl.Rollback("again")

	want := []string{"begin:outer", "rollback:boom"}
	if !slices.Equal(rec.events, want) {
		t.Errorf("events = %v, want %v", rec.events, want)
	}
	if err := tbl.Commit(); !errors.Is(err, ErrNoTransaction) {
		t.Errorf("Commit after rollback = %v, want ErrNoTransaction", err)
	}
}

func TestListenersMayRegisterWhileNotified(t *testing.T) {
	tbl := NewTable("t")
	late := &recorder{}
	tbl.AddListener(&ListenerFuncs{OnChildAdded: func(ChildEvent) { tbl.AddListener(late) }})

	tbl.AddColumn(intCol("a"))
	if len(late.events) != 0 {
		t.Fatalf("listener added during delivery saw the same event: %v", late.events)
	}
	tbl.AddColumn(intCol("b"))
	if late.count("added:b") != 1 {
		t.Errorf("late listener events = %v, want added:b", late.events)
	}
}

func TestListenerOrder(t *testing.T) {
	tbl := NewTable("t")
	var got []int
	for i := range 3 {
		tbl.AddListener(&ListenerFuncs{OnChildAdded: func(ChildEvent) { got = append(got, i) }})
	}
	tbl.AddColumn(intCol("a"))
	if !slices.Equal(got, []int{0, 1, 2}) {
		t.Errorf("delivery order = %v, want registration order", got)
	}
}

func TestVetoedRemovalLeavesStateUnchanged(t *testing.T) {
	tbl := NewTable("t")
	a := intCol("a")
	tbl.AddColumn(a)
	rec := &recorder{}
	tbl.AddListener(&ListenerFuncs{OnChildRemoving: func(ChildEvent) error { return errors.New("keep it") }})
	tbl.AddListener(rec)

	ok, err := tbl.RemoveColumn(a)
	if err != nil || ok {
		t.Fatalf("RemoveColumn = %v, %v; want false, nil", ok, err)
	}
	if a.Table() != tbl || len(tbl.Columns()) != 1 {
		t.Errorf("vetoed column was removed")
	}
	if len(rec.events) != 0 {
		t.Errorf("vetoed removal fired %v", rec.events)
	}
}

func TestPhysicalNameDefaultsToName(t *testing.T) {
	c := intCol("a")
	if c.PhysicalName() != "a" {
		t.Fatalf("PhysicalName = %q, want a", c.PhysicalName())
	}
	c.SetName("b")
	if c.PhysicalName() != "b" {
		t.Errorf("PhysicalName after rename = %q, want b", c.PhysicalName())
	}
	c.SetPhysicalName("B_COL")
	c.SetName("c")
	if c.PhysicalName() != "B_COL" {
		t.Errorf("explicit PhysicalName = %q, want B_COL", c.PhysicalName())
	}
}

func TestWalkVisitsChildrenInOrder(t *testing.T) {
	tbl := NewTable("t")
	tbl.AddColumnAt(intCol("id"), 0, true)
	tbl.AddColumn(intCol("v"))

	var names []string
	Walk(tbl, func(n Node) bool {
		names = append(names, n.Name())
		return true
	})
	want := []string{"t", "id", "v", "t_pk", "id"}
	if !slices.Equal(names, want) {
		t.Errorf("Walk = %v, want %v", names, want)
	}
}

func TestForegroundDispatcher(t *testing.T) {
	ctx := context.Background()
	f := NewForeground()
	defer f.Close()

	t.Run("nested dispatch runs inline", func(t *testing.T) {
		var inner bool
		err := f.Dispatch(ctx, func(ctx context.Context) {
			if err := f.Dispatch(ctx, func(context.Context) { inner = true }); err != nil {
				t.Errorf("nested Dispatch: %v", err)
			}
		})
		if err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
		if !inner {
			t.Error("nested task did not run")
		}
	})

	t.Run("panic is re-raised in caller", func(t *testing.T) {
		defer func() {
			if r := recover(); r != "boom" {
				t.Errorf("recovered %v, want boom", r)
			}
		}()
		f.Dispatch(ctx, func(context.Context) { panic("boom") })
		t.Error("Dispatch returned normally")
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		blocker := make(chan struct{})
		go f.Dispatch(ctx, func(context.Context) { <-blocker })
		defer close(blocker)
		// The loop may or may not have picked up the blocker yet; either way a
		// cancelled caller must not hang.
		err := f.Dispatch(cctx, func(context.Context) {})
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Dispatch = %v", err)
		}
	})
}

func TestForegroundClosed(t *testing.T) {
	f := NewForeground()
	f.Close()
	err := f.Dispatch(context.Background(), func(context.Context) { t.Error("task ran after Close") })
	if !errors.Is(err, ErrDispatcherClosed) {
		t.Errorf("Dispatch after Close = %v, want ErrDispatcherClosed", err)
	}
}

func TestInlineDispatcher(t *testing.T) {
	var ran bool
	if err := (Inline{}).Dispatch(context.Background(), func(context.Context) { ran = true }); err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Error("task did not run")
	}
}

func TestColumnDefaults(t *testing.T) {
	d := DefaultColumnDefaults()
	c := d.NewColumn("")
	if c.Name() != "new_column" || c.NativeType() != "VARCHAR" || c.Precision() != 10 {
		t.Errorf("blank column = %s %s(%d)", c.Name(), c.NativeType(), c.Precision())
	}

	d.TypeName = "NUMBER"
	d.TypeCode = model.TypeNumeric
	d.Precision = 18
	d.Scale = 4
	d.Nullable = model.NoNulls
	c = d.NewColumn("amount")
	if c.TypeCode() != model.TypeNumeric || c.Scale() != 4 || c.Nullable() != model.NoNulls {
		t.Errorf("configured column = %v scale %d %v", c.TypeCode(), c.Scale(), c.Nullable())
	}
}
