package locks

import "time"

// StartReaper begins periodic reclamation of expired leases.
func (r *Registry) StartReaper() {
	r.reaperMu.Lock()
	defer r.reaperMu.Unlock()

	if r.running {
		return // Already running
	}

	r.stopChan = make(chan struct{})
	r.running = true

	go r.run(r.stopChan)
}

// StopReaper halts the periodic reclamation.
func (r *Registry) StopReaper() {
	r.reaperMu.Lock()
	defer r.reaperMu.Unlock()

	if !r.running {
		return
	}

	close(r.stopChan)
	r.stopChan = nil
	r.running = false
}

// IsReaperRunning returns whether the reaper is currently running.
func (r *Registry) IsReaperRunning() bool {
	r.reaperMu.Lock()
	defer r.reaperMu.Unlock()
	return r.running
}

func (r *Registry) run(stop chan struct{}) {
	ticker := time.NewTicker(r.reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.ReapExpired(); n > 0 {
				r.logger.Info("Lease reaper reclaimed %d expired lock(s)", n)
			}
		case <-stop:
			return
		}
	}
}
