package mqtt

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/eclipse/paho.golang/paho"
)

const sharePrefix = "$share/"

type route struct {
	filter  string
	levels  []string
	qos     byte
	handler MessageHandler
}

// router holds the active subscriptions. The broker only reports the topic of a message, not
// the filter it matched, so every delivery is checked against all routes.
type router struct {
	mu     sync.RWMutex
	routes map[string]route
}

func newRouter() *router {
	return &router{routes: make(map[string]route)}
}

// add registers or replaces the handler of filter.
func (r *router) add(filter string, qos int, h MessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[filter] = route{
		filter:  filter,
		levels:  filterLevels(filter),
		qos:     byte(qos),
		handler: h,
	}
}

func (r *router) remove(filter string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.routes[filter]
	delete(r.routes, filter)
	return ok
}

// subscriptions lists every route as subscribe options, ordered by filter.
func (r *router) subscriptions() []paho.SubscribeOptions {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := make([]paho.SubscribeOptions, 0, len(r.routes))
	for _, rt := range r.routes {
		subs = append(subs, paho.SubscribeOptions{Topic: rt.filter, QoS: rt.qos})
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Topic < subs[j].Topic })
	return subs
}

func (r *router) handlers(topic string) []MessageHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var hs []MessageHandler
	for _, rt := range r.routes {
		if matchTopic(rt.levels, topic) {
			hs = append(hs, rt.handler)
		}
	}
	return hs
}

// dispatch starts every handler matching msg.Topic and returns how many were started.
// Handlers never run on the caller's goroutine, which is the paho reader loop.
func (r *router) dispatch(ctx context.Context, msg Message) int {
	hs := r.handlers(msg.Topic)
	for _, h := range hs {
		go h(ctx, msg)
	}
	return len(hs)
}

// filterLevels splits a filter into levels, dropping a shared subscription prefix.
func filterLevels(filter string) []string {
	if rest, ok := strings.CutPrefix(filter, sharePrefix); ok {
		if _, f, ok := strings.Cut(rest, "/"); ok {
			filter = f
		}
	}
	return strings.Split(filter, "/")
}

// matchTopic reports whether topic is matched by the filter levels. "#" also matches the
// parent level, and wildcards in the first level never match topics starting with "$".
func matchTopic(filter []string, topic string) bool {
	if strings.HasPrefix(topic, "$") && len(filter) > 0 && (filter[0] == "+" || filter[0] == "#") {
		return false
	}

	levels := strings.Split(topic, "/")
	for i, f := range filter {
		if f == "#" {
			return true
		}
		if i >= len(levels) {
			return false
		}
		if f != "+" && f != levels[i] {
			return false
		}
	}
	return len(filter) == len(levels)
}

// validateFilter rejects filters the broker would refuse.
func validateFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("empty topic filter")
	}

	levels := filterLevels(filter)
	for i, l := range levels {
		switch {
		case l == "#" && i != len(levels)-1:
			return fmt.Errorf("topic filter %q: '#' must be the last level", filter)
		case l != "#" && l != "+" && strings.ContainsAny(l, "#+"):
			return fmt.Errorf("topic filter %q: wildcards must occupy a whole level", filter)
		}
	}
	return nil
}
