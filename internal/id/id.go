package id

import (
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	node   *snowflake.Node
	nodeID int64
	once   sync.Once

	mu       sync.Mutex
	lastMs   int64
	lastStep int64
)

// Init sets the snowflake node id. Later calls are ignored.
func Init(id int64) error {
	var err error
	once.Do(func() {
		nodeID = id
		node, err = snowflake.NewNode(id)
	})
	return err
}

// New generates a time-ordered unique id from the wall clock.
func New() snowflake.ID {
	_ = Init(1)
	return node.Generate()
}

// At builds a snowflake id whose timestamp component is t rather than the
// wall clock. Ids minted for the same millisecond get increasing steps.
func At(t time.Time) snowflake.ID {
	_ = Init(1)

	ms := t.UnixMilli() - snowflake.Epoch
	stepMask := int64(-1 ^ (-1 << snowflake.StepBits))

	mu.Lock()
	step := int64(0)
	if ms == lastMs {
		step = (lastStep + 1) & stepMask
	}
	lastMs, lastStep = ms, step
	mu.Unlock()

	timeShift := snowflake.NodeBits + snowflake.StepBits
	return snowflake.ID(ms<<timeShift | nodeID<<snowflake.StepBits | step)
}
