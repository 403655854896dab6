// Package scanner ingests hardware card scans: barcode parsing, device
// registry lookup, and at-least-once dispatch of scanned cards into the
// dealer action path. One worker goroutine per table keeps a table's
// messages in FIFO order while different tables proceed in parallel.
package scanner

import (
	"context"
	"log"
	"sync"
	"time"

	"tableengine/internal/card"
	"tableengine/internal/engineerr"
	"tableengine/internal/store"
)

// Message is one {serial, barcode, ts} delivery from the hardware layer.
type Message struct {
	Serial  string
	Barcode string
	Ts      time.Time
}

// DealFunc applies a parsed card to the table's active game — in practice
// (*coordinator.Coordinator).DealFromScan.
type DealFunc func(ctx context.Context, tableID string, code card.Code) error

// Ingester consumes scan messages and dispatches them into DealFunc,
// processing messages for a given table strictly in enqueue order.
type Ingester struct {
	store store.Store
	deal  DealFunc

	mu      sync.Mutex
	workers map[string]chan task
}

type task struct {
	code card.Code
	ack  func()
}

// New builds an Ingester over store (for device registry lookups) and deal
// (the per-table dealing entry point).
func New(st store.Store, deal DealFunc) *Ingester {
	return &Ingester{store: st, deal: deal, workers: make(map[string]chan task)}
}

// Enqueue accepts one scan message for at-least-once processing. ack is
// invoked once the message has been handled, successfully or not:
// duplicates and malformed scans are acknowledged, never retried, so a
// bad scan cannot block the cards behind it.
func (ing *Ingester) Enqueue(msg Message, ack func()) {
	code, err := card.ParseBarcode(msg.Barcode)
	if err != nil {
		log.Printf("[scanner %s] invalid barcode %q: %v", msg.Serial, msg.Barcode, err)
		ack()
		return
	}

	ctx := context.Background()
	tableID, err := ing.resolveDevice(ctx, msg.Serial)
	if err != nil {
		log.Printf("[scanner %s] device resolution failed: %v", msg.Serial, err)
		ack()
		return
	}

	ing.workerFor(tableID) <- task{code: code, ack: ack}
}

func (ing *Ingester) workerFor(tableID string) chan task {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	ch, ok := ing.workers[tableID]
	if !ok {
		ch = make(chan task, 256)
		ing.workers[tableID] = ch
		go ing.run(tableID, ch)
	}
	return ch
}

func (ing *Ingester) run(tableID string, ch chan task) {
	for t := range ch {
		ing.deliver(tableID, t)
	}
}

func (ing *Ingester) deliver(tableID string, t task) {
	defer t.ack()
	if err := ing.deal(context.Background(), tableID, t.code); err != nil {
		if engineerr.Is(err, engineerr.DuplicateCard) {
			log.Printf("[scanner %s] duplicate card %s rejected, acking", tableID, t.code)
			return
		}
		log.Printf("[scanner %s] deal failed: %v", tableID, err)
	}
}

// resolveDevice looks up serial in the registry, rejecting unknown or
// non-scanner devices, and touches lastSeenAt. It uses its own short Tx
// since the device's table isn't known until the lookup resolves.
func (ing *Ingester) resolveDevice(ctx context.Context, serial string) (string, error) {
	tx, err := ing.store.Begin(ctx, "")
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	dev, err := tx.Device(ctx, serial)
	if err != nil {
		if err == store.ErrNotFound {
			return "", engineerr.New(engineerr.DeviceMisconfigured, "no device registered with serial %s", serial)
		}
		return "", err
	}
	if dev.DeviceType != store.DeviceScanner {
		return "", engineerr.New(engineerr.DeviceMisconfigured, "device %s is not a scanner", serial)
	}
	dev.LastSeenAt = time.Now().UTC()
	if err := tx.UpsertDevice(ctx, dev); err != nil {
		return "", err
	}
	return dev.TableID, tx.Commit()
}
