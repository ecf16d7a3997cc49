// Package devices implements the station's device registry: the single
// source of truth for what radio hardware (and virtual/pseudo stand-ins)
// exists, which module currently occupies each one, and how wide-band
// sweep hardware is handed out as virtual narrow-band slots.
package devices

import (
	"fmt"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind identifies the category of a registered device.
type Kind int

const (
	WideBand Kind = iota
	NarrowBand
	Virtual
	Pseudo
)

func (k Kind) String() string {
	switch k {
	case WideBand:
		return "wideband"
	case NarrowBand:
		return "narrowband"
	case Virtual:
		return "virtual"
	case Pseudo:
		return "pseudo"
	default:
		return "unknown"
	}
}

// Device describes one registered device slot. Fields that don't apply to
// a given Kind are left at their zero value.
type Device struct {
	ID   any // int for physical/pseudo devices, string for virtual slots
	Kind Kind

	// NarrowBand fields
	Serial  string
	Gain    float64
	PPM     int
	Offset  int
	MinFreq int64
	MaxFreq int64

	// WideBand fields
	LNAGain int
	VGAGain int
	MinScan int64
	MaxScan int64
	Step    int64

	// Virtual fields
	ParentWideBand any

	job      *Job
	reserved bool
}

// Job describes the module occupying a device.
type Job struct {
	Module    string
	ArgLine   string
	StartedAt time.Time
}

// Registry is the concurrency-safe store of all known devices, keyed by
// physical/pseudo integer id or virtual-slot letter.
type Registry struct {
	mu      sync.RWMutex
	devices *orderedmap.OrderedMap[any, *Device]
	nextVirt byte
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		devices:  orderedmap.New[any, *Device](),
		nextVirt: 'a',
	}
}

// HackRFProbe is satisfied by whatever wide-band driver collaborator is
// wired in (internal/hackrf in this tree); Enumerate only needs to know
// whether wide-band hardware is present and its tuning envelope.
type HackRFProbe interface {
	Present() bool
	MinFreq() int64
	MaxFreq() int64
}

// NarrowBandProbe is satisfied by the rtlsdr driver collaborator.
type NarrowBandProbe interface {
	GetDeviceCount() int
	GetDeviceUSBStrings(index int) (vendor, product, serial string, err error)
}

// Enumerate populates the registry from the given hardware collaborators.
// A wide-band probe returning Present()==false is simply skipped (the
// "have_wide=false" fallback); narrow-band devices are assigned integer ids
// in enumeration order starting after the wide-band slot, if any.
func (r *Registry) Enumerate(wb HackRFProbe, nb NarrowBandProbe, lnaGain, vgaGain int, step int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nextID := 0
	if wb != nil && wb.Present() {
		r.devices.Set(nextID, &Device{
			ID:      nextID,
			Kind:    WideBand,
			LNAGain: lnaGain,
			VGAGain: vgaGain,
			MinScan: wb.MinFreq(),
			MaxScan: wb.MaxFreq(),
			Step:    step,
		})
		nextID++
	}

	if nb != nil {
		count := nb.GetDeviceCount()
		for i := 0; i < count; i++ {
			_, _, serial, err := nb.GetDeviceUSBStrings(i)
			if err != nil {
				continue
			}
			r.devices.Set(nextID, &Device{
				ID:     nextID,
				Kind:   NarrowBand,
				Serial: serial,
			})
			nextID++
		}
	}
}

// All returns every registered device, oldest-enumerated first.
func (r *Registry) All() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Device, 0, r.devices.Len())
	for pair := r.devices.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Get returns the device registered under id.
func (r *Registry) Get(id any) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.devices.Get(id)
}

// IsDevice reports whether id is registered.
func (r *Registry) IsDevice(id any) bool {
	_, ok := r.Get(id)
	return ok
}

// DevType returns the Kind of id, or false if id is not registered.
func (r *Registry) DevType(id any) (Kind, bool) {
	d, ok := r.Get(id)
	if !ok {
		return 0, false
	}
	return d.Kind, true
}

// NarrowBandInfo returns the narrow-band-specific fields of id. ok is false
// if id is not registered or is not a NarrowBand device.
func (r *Registry) NarrowBandInfo(id any) (serial string, gain float64, ppm, offset int, ok bool) {
	d, found := r.Get(id)
	if !found || d.Kind != NarrowBand {
		return "", 0, 0, 0, false
	}
	return d.Serial, d.Gain, d.PPM, d.Offset, true
}

// WideBandInfo returns the wide-band-specific fields of id. ok is false if
// id is not registered or is not a WideBand device.
func (r *Registry) WideBandInfo(id any) (lnaGain, vgaGain int, minScan, maxScan, step int64, ok bool) {
	d, found := r.Get(id)
	if !found || d.Kind != WideBand {
		return 0, 0, 0, 0, 0, false
	}
	return d.LNAGain, d.VGAGain, d.MinScan, d.MaxScan, d.Step, true
}

// WideBandInfoFor resolves id to its governing wide-band device - id
// itself if it already names a WideBand device, or its ParentWideBand if
// it names a Virtual slot - and returns that device's wide-band fields.
func (r *Registry) WideBandInfoFor(id any) (lnaGain, vgaGain int, minScan, maxScan, step int64, ok bool) {
	d, found := r.Get(id)
	if !found {
		return 0, 0, 0, 0, 0, false
	}
	if d.Kind == Virtual {
		return r.WideBandInfo(d.ParentWideBand)
	}
	return r.WideBandInfo(id)
}

// NextVirtual returns the first lowercase letter "a".."z" not currently in
// use as a virtual slot id, or "" if all 26 letters are in use.
func (r *Registry) NextVirtual() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextVirtualLocked()
}

func (r *Registry) nextVirtualLocked() string {
	for c := byte('a'); c <= 'z'; c++ {
		id := string(c)
		if _, exists := r.devices.Get(id); !exists {
			return id
		}
	}
	return ""
}

// Occupy assigns job to id. If id names a WideBand device, a new Virtual
// slot is transparently allocated and occupied instead - the wide-band
// device itself never carries a job. Returns the id the job actually
// landed on.
func (r *Registry) Occupy(id any, job *Job) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices.Get(id)
	if !ok {
		return nil, fmt.Errorf("device %v not registered", id)
	}

	if d.Kind == WideBand {
		virtID := r.nextVirtualLocked()
		if virtID == "" {
			return nil, fmt.Errorf("no free virtual slot on device %v", id)
		}
		virt := &Device{
			ID:             virtID,
			Kind:           Virtual,
			ParentWideBand: id,
			job:            job,
		}
		r.devices.Set(virtID, virt)
		return virtID, nil
	}

	if d.job != nil {
		return nil, fmt.Errorf("device %v already occupied by %s", id, d.job.Module)
	}
	d.job = job
	return id, nil
}

// OccupyPseudo assigns job to a pseudo device id, synthesising a Pseudo
// record the first time id is used - pseudo ids are never produced by
// Enumerate, so the record has to come into being here instead.
func (r *Registry) OccupyPseudo(id any, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices.Get(id)
	if !ok {
		d = &Device{ID: id, Kind: Pseudo}
		r.devices.Set(id, d)
	}
	if d.job != nil {
		return fmt.Errorf("device %v already occupied by %s", id, d.job.Module)
	}
	d.job = job
	return nil
}

// Free clears any job occupying id. Freeing a Virtual slot removes it from
// the registry entirely, since virtual slots only exist for the lifetime
// of the job that created them.
func (r *Registry) Free(id any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices.Get(id)
	if !ok {
		return
	}
	if d.Kind == Virtual {
		r.devices.Delete(id)
		return
	}
	d.job = nil
}

// reservedSentinel is the job text a reservation displays in place of a
// real job, so reserved devices still read as occupied to Running/JobOn.
const reservedSentinel = "*** Reserved"

// Reserve marks id as reserved (manually held out of automatic use,
// e.g. via the REPL's "reserve" command), displaying a sentinel job so it
// reads as occupied. Reservation of the wide-band device itself is
// refused - it never carries a job directly, only its Virtual slots do.
func (r *Registry) Reserve(id any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices.Get(id)
	if !ok {
		return fmt.Errorf("device %v not registered", id)
	}
	if d.Kind == WideBand {
		return fmt.Errorf("invalid device: %v", id)
	}
	if d.job != nil {
		return fmt.Errorf("device %v already reserved or occupied", id)
	}
	d.reserved = true
	d.job = &Job{Module: reservedSentinel}
	return nil
}

// Unreserve clears a reservation made by Reserve, including its sentinel
// job.
func (r *Registry) Unreserve(id any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices.Get(id)
	if !ok {
		return fmt.Errorf("device %v not registered", id)
	}
	if !d.reserved {
		return fmt.Errorf("device %v not reserved", id)
	}
	d.reserved = false
	d.job = nil
	return nil
}

// Reserved reports whether id is currently reserved.
func (r *Registry) Reserved(id any) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices.Get(id)
	return ok && d.reserved
}

// Running returns the (module, argline, started_at) triples of every
// device currently occupied by a job - including reserved devices, which
// display their sentinel job - excluding the wide-band sentinel device
// itself (which is never directly occupied - see Occupy). This is what
// the connector's heartbeat reports upstream.
func (r *Registry) Running() []*Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Job
	for pair := r.devices.Oldest(); pair != nil; pair = pair.Next() {
		d := pair.Value
		if d.Kind == WideBand {
			continue
		}
		if d.job != nil {
			out = append(out, d.job)
		}
	}
	return out
}

// RunningIDs returns the ids of every device currently occupied by a job,
// excluding the wide-band sentinel itself. Used where a device id list is
// wanted rather than job detail, e.g. the REPL's "stop" completion.
func (r *Registry) RunningIDs() []any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []any
	for pair := r.devices.Oldest(); pair != nil; pair = pair.Next() {
		d := pair.Value
		if d.Kind == WideBand {
			continue
		}
		if d.job != nil {
			out = append(out, d.ID)
		}
	}
	return out
}

// JobOn returns the job occupying id, if any.
func (r *Registry) JobOn(id any) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices.Get(id)
	if !ok || d.job == nil {
		return nil, false
	}
	return d.job, true
}
