package main

import "log"

// Dispatcher resolves identities to their live connections and writes a
// payload to each, best effort. A recipient that is gone, slow, or
// broken is logged and skipped; the sender is never told.
type Dispatcher struct {
	directory SessionDirectory
	registry  *Registry
}

func NewDispatcher(directory SessionDirectory, registry *Registry) *Dispatcher {
	return &Dispatcher{directory: directory, registry: registry}
}

func (d *Dispatcher) DeliverToIdentity(identity string, payload []byte) {
	d.DeliverToIdentities([]string{identity}, payload)
}

// DeliverToIdentities writes payload to every live connection whose
// session belongs to one of the identities. Delivery is deduplicated by
// session identifier, not by identity: a user with three tabs gets
// three copies, one per tab, and a session owned by both the sender and
// receiver side of a conversation still gets exactly one.
func (d *Dispatcher) DeliverToIdentities(identities []string, payload []byte) {
	sessions, err := d.directory.EnumerateActiveSessions()
	if err != nil {
		log.Printf("could not enumerate sessions for delivery: %v\n", err)
		return
	}

	targets := make(map[string]struct{}, len(identities))
	for _, identity := range identities {
		if identity != "" {
			targets[identity] = struct{}{}
		}
	}

	delivered := make(map[string]struct{})
	for _, sess := range sessions {
		if _, ok := targets[sess.Username]; !ok {
			continue
		}
		if _, dup := delivered[sess.ID]; dup {
			continue
		}
		delivered[sess.ID] = struct{}{}

		out, ok := d.registry.Lookup(sess.ID)
		if !ok {
			// Session without a live socket. Not an error.
			continue
		}
		if err := out.Enqueue(payload); err != nil {
			log.Printf("could not deliver to session %s: %v\n", sess.ID, err)
		}
	}
}
