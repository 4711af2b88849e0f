package nvr

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/technosupport/hikvision-bridge/internal/metrics"
	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters/hikvision"
)

const DefaultPollInterval = 60 * time.Second

// diagnosticsSource is the part of the client the poller reads.
type diagnosticsSource interface {
	GetAlarmServer(ctx context.Context) (*hikvision.AlarmServer, error)
	GetStorageDevices(ctx context.Context) ([]hikvision.StorageInfo, error)
}

// Poller refreshes the alarm server and storage sensors on a ticker.
type Poller struct {
	src    diagnosticsSource
	device *Device
	store  *EntityStore

	mu       sync.Mutex
	interval time.Duration
	reset    chan time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewPoller(src diagnosticsSource, device *Device, store *EntityStore, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		src:      src,
		device:   device,
		store:    store,
		interval: interval,
		reset:    make(chan time.Duration, 1),
		stopChan: make(chan struct{}),
	}
}

func (p *Poller) Start() {
	p.wg.Add(1)
	go p.runLoop()
}

func (p *Poller) Stop() {
	close(p.stopChan)
	p.wg.Wait()
}

// SetInterval changes the tick period of a running poller.
func (p *Poller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	changed := d != p.interval
	p.interval = d
	p.mu.Unlock()
	if !changed {
		return
	}
	select {
	case p.reset <- d:
	default:
	}
}

func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

func (p *Poller) runLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case d := <-p.reset:
			ticker.Reset(d)
			log.Printf("[INFO] Poller interval set to %s", d)
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.Interval())
			p.PollOnce(ctx)
			cancel()
		}
	}
}

// PollOnce refreshes both diagnostics. A device is online when either read works.
func (p *Poller) PollOnce(ctx context.Context) {
	online := false

	if srv, err := p.src.GetAlarmServer(ctx); err != nil {
		log.Printf("[WARN] %s: alarm server poll failed: %v", p.device.SerialNo(), err)
		metrics.PollsTotal.WithLabelValues("alarm_server", "fail").Inc()
	} else {
		online = true
		metrics.PollsTotal.WithLabelValues("alarm_server", "ok").Inc()
		if srv != nil {
			p.device.SetAlarmServer(srv)
			UpdateAlarmServerSensors(p.device, p.store, srv)
		}
	}

	if disks, err := p.src.GetStorageDevices(ctx); err != nil {
		log.Printf("[WARN] %s: storage poll failed: %v", p.device.SerialNo(), err)
		metrics.PollsTotal.WithLabelValues("storage", "fail").Inc()
	} else {
		online = true
		metrics.PollsTotal.WithLabelValues("storage", "ok").Inc()
		p.device.SetStorage(disks)
		UpdateStorageSensors(p.device, p.store, disks)
	}

	if online {
		metrics.DeviceOnline.Set(1)
	} else {
		metrics.DeviceOnline.Set(0)
	}
}
