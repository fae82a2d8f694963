package crawler

import "sync"

// downloadJob is one URL admitted to a session.
type downloadJob struct {
	session *session
	url     string
	host    string
	depth   int
	final   bool
}

// hostState is the admission state of one host.
type hostState struct {
	mu     sync.Mutex
	active int
	queue  []*downloadJob
}

// hostThrottle caps in-flight downloads per host. State is created lazily on
// first sighting of a host and shared by every session of the crawler, so
// concurrent crawls hitting the same host share its cap. Different hosts
// never contend on the same lock.
type hostThrottle struct {
	perHost int
	hosts   sync.Map // host -> *hostState
}

func newHostThrottle(perHost int) *hostThrottle {
	return &hostThrottle{perHost: perHost}
}

func (t *hostThrottle) state(host string) *hostState {
	v, _ := t.hosts.LoadOrStore(host, &hostState{})
	return v.(*hostState) //nolint:forcetypeassert // only *hostState is stored
}

// acquire takes a slot for job and reports true, or queues job behind the
// host's earlier requests and reports false.
func (t *hostThrottle) acquire(job *downloadJob) bool {
	s := t.state(job.host)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active < t.perHost {
		s.active++
		return true
	}
	s.queue = append(s.queue, job)
	return false
}

// release frees the slot held by a finished download on host. When work is
// queued for the host, the slot passes straight to the oldest queued job,
// which is returned and must be dispatched by the caller. Otherwise the
// active count drops and nil is returned.
func (t *hostThrottle) release(host string) *downloadJob {
	s := t.state(host)
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) > 0 {
		next := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		return next
	}
	// A release racing with reset lands on fresh state.
	if s.active > 0 {
		s.active--
	}
	return nil
}

// inFlight returns the number of slots held for host.
func (t *hostThrottle) inFlight(host string) int {
	s := t.state(host)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// queued returns the number of jobs waiting for host.
func (t *hostThrottle) queued(host string) int {
	s := t.state(host)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// reset drops every host, including queued jobs.
func (t *hostThrottle) reset() {
	t.hosts.Clear()
}
