package audit

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"
)

// Manager batches events and hands the batches to a worker pool that
// publishes them. Record never blocks the caller: when the pipeline is
// saturated the event is written to the process log instead of dropped
// silently.
type Manager struct {
	workerCount int
	batchSize   int
	timeout     time.Duration
	topic       string
	producer    Producer

	inputChan  chan Event
	batchChan  chan []Event
	shutdownCh chan struct{}
	once       sync.Once
	wg         sync.WaitGroup
}

func NewManager(producer Producer, topic string, workerCount, batchSize int, timeout time.Duration) *Manager {
	return &Manager{
		workerCount: workerCount,
		batchSize:   batchSize,
		timeout:     timeout,
		topic:       topic,
		producer:    producer,
		inputChan:   make(chan Event, workerCount*batchSize*2),
		batchChan:   make(chan []Event, workerCount*2),
		shutdownCh:  make(chan struct{}),
	}
}

func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	go m.runAggregator(ctx)

	for i := 0; i < m.workerCount; i++ {
		m.wg.Add(1)
		go m.runWorker(i)
	}
}

func (m *Manager) Shutdown(ctx context.Context) {
	m.once.Do(func() {
		close(m.shutdownCh)

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			log.Println("Audit manager shutdown completed")
		case <-ctx.Done():
			log.Println("WARNING: audit manager shutdown interrupted")
		}
		if err := m.producer.Close(); err != nil {
			log.Printf("ERROR: closing audit producer: %v", err)
		}
	})
}

// Record enqueues one event. Non-blocking.
func (m *Manager) Record(event Event) {
	select {
	case m.inputChan <- event:
	default:
		m.fallbackLog(event)
	}
}

func (m *Manager) runAggregator(ctx context.Context) {
	defer m.wg.Done()

	var (
		batch    []Event
		timer    *time.Timer
		timeoutC <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
		if len(batch) > 0 {
			m.dispatchBatch(batch)
		}
		close(m.batchChan)
	}()

	for {
		select {
		case event := <-m.inputChan:
			batch = append(batch, event)
			if len(batch) >= m.batchSize {
				m.dispatchBatch(batch)
				batch = nil
				timeoutC = nil
			} else if len(batch) == 1 {
				timer = time.NewTimer(m.timeout)
				timeoutC = timer.C
			}

		case <-timeoutC:
			m.dispatchBatch(batch)
			batch = nil
			timeoutC = nil

		case <-ctx.Done():
			return

		case <-m.shutdownCh:
			return
		}
	}
}

func (m *Manager) dispatchBatch(batch []Event) {
	batchCopy := make([]Event, len(batch))
	copy(batchCopy, batch)

	select {
	case m.batchChan <- batchCopy:
	default:
		for _, event := range batchCopy {
			m.fallbackLog(event)
		}
	}
}

// runWorker drains until the aggregator closes the batch channel, so
// pending batches still flush during shutdown. Publishing uses its own
// timeout rather than the run context for the same reason.
func (m *Manager) runWorker(id int) {
	defer m.wg.Done()

	for batch := range m.batchChan {
		for _, event := range batch {
			value, err := json.Marshal(event)
			if err != nil {
				log.Printf("ERROR: worker %d failed to marshal audit event: %v", id, err)
				continue
			}
			key := []byte(strconv.FormatUint(event.ShipmentID, 10))

			sendCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := m.producer.SendMessage(sendCtx, m.topic, key, value); err != nil {
				log.Printf("ERROR: worker %d failed to publish audit event %s: %v", id, event.ID, err)
				m.fallbackLog(event)
			}
			cancel()
		}
	}
}

func (m *Manager) fallbackLog(event Event) {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		log.Printf("ERROR: failed to marshal audit event: %v", err)
		return
	}
	log.Printf("AUDIT (fallback): %s", eventJSON)
}
