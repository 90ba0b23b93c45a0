package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	mu   sync.RWMutex
	node *snowflake.Node
)

// Init sets up the Snowflake node used for inbound message ids.
// Calling it again replaces the node, which tests rely on.
func Init(nodeID int64) error {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}
	mu.Lock()
	node = n
	mu.Unlock()
	return nil
}

// New returns a time-ordered id for correlating the logs of one inbound
// message across the webhook request and its deferred delivery.
// Falls back to node 0 when Init was never called.
func New() int64 {
	mu.RLock()
	n := node
	mu.RUnlock()
	if n == nil {
		_ = Init(0)
		mu.RLock()
		n = node
		mu.RUnlock()
	}
	return n.Generate().Int64()
}
