package svm

// Compute unit costs. Every dispatch of a program charges its default cost,
// every nested invocation charges CUInvokeBase on top.
const (
	CUDefault    = uint64(200_000)   // limit when a transaction sets none
	CUMax        = uint64(1_400_000) // upper bound for any limit
	CUInvokeBase = uint64(1_000)

	CUSystemProgramDefault   = uint64(150)
	CUTokenProgramDefault    = uint64(2_000)
	CUAssociatedTokenDefault = uint64(4_000)
	CUSaleProgramDefault     = uint64(5_000)
)

// CPIDepthMax is the deepest nesting level an invocation may run at; the
// top-level instruction is level 1.
const CPIDepthMax = 4

// ComputeMeter tracks compute unit consumption of one transaction. It is not
// safe for concurrent use; the runtime executes one transaction at a time.
type ComputeMeter struct {
	consumed  uint64
	limit     uint64
	unlimited bool
}

// NewComputeMeter creates a meter with limit units, capped at CUMax.
func NewComputeMeter(limit uint64) *ComputeMeter {
	if limit > CUMax {
		limit = CUMax
	}
	return &ComputeMeter{limit: limit}
}

// NewComputeMeterDisabled creates a meter that counts but never runs out.
func NewComputeMeterDisabled() *ComputeMeter {
	return &ComputeMeter{limit: CUMax, unlimited: true}
}

// Consume charges cost units. When fewer remain, the meter is drained and
// ErrComputationalBudgetExceeded returned.
func (cm *ComputeMeter) Consume(cost uint64) error {
	if !cm.unlimited && cm.limit-cm.consumed < cost {
		cm.consumed = cm.limit
		return ErrComputationalBudgetExceeded
	}
	cm.consumed += cost
	return nil
}

// Consumed returns the units charged so far.
func (cm *ComputeMeter) Consumed() uint64 {
	return cm.consumed
}

// Limit returns the compute unit limit.
func (cm *ComputeMeter) Limit() uint64 {
	return cm.limit
}
