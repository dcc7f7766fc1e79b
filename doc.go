/*
Package statemachine is an event-driven state machine engine whose workers
publish their lifecycle to external observers in real time.

Each worker runs a single-threaded transition loop. Its EventSource sends
every occurrence (transition, received input, log line) to a shared
broadcast ingress, best effort and never blocking. A singleton relay owns
that ingress and fans events out to any number of subscriber sessions;
a slow or absent observer never affects the producing worker. Separately,
every worker binds a control endpoint named after its machine, through
which external actors inject events, query state, or request shutdown.

# Topology

	Worker -> EventSource -> BroadcastRelay -> SubscriberSession(s) -> Consumer(s)
	Consumer -> ControlEndpoint(worker name) -> worker scheduler

The relay is observability infrastructure, not a system of record: there
is no delivery guarantee, no persistence, and no replay. A subscriber
connecting after an event was broadcast never sees it.

# Usage

Run the pieces with the statemachine CLI:

	statemachine relay
	statemachine run worker1.yaml
	statemachine monitor --machine worker1
	statemachine send worker1 --command send_event --type new_job

Programmatic consumers use pkg/bus:

	m := bus.NewMonitor("127.0.0.1:9670", bus.WithMachine("worker1"))
	err := m.Stream(ctx, func(ev events.Event) error {
		fmt.Println(ev.Type, ev.ToState)
		return nil
	})
*/
package statemachine

// Version is the release version of the statemachine module.
const Version = "1.0.0"
