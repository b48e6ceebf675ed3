package replicator

import "fmt"

// ReplicationError is a failed attempt to replicate one product into one
// target tenant. Callers collect these per record; they never abort a
// chunk.
type ReplicationError struct {
	ProductID int64
	Tenant    string
	Err       error
}

func (e *ReplicationError) Error() string {
	return fmt.Sprintf("replicate product %d to tenant %s: %v", e.ProductID, e.Tenant, e.Err)
}

func (e *ReplicationError) Unwrap() error {
	return e.Err
}
