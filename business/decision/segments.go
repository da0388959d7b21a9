package decision

import "context"

// SegmentChecker resolves user_segment conditions against the segment store.
type SegmentChecker interface {
	IsMember(ctx context.Context, tenantID, userID uint, segmentID uint64) (bool, error)
}

// NoopSegmentChecker is the default implementation: nobody is in any segment.
type NoopSegmentChecker struct{}

func (NoopSegmentChecker) IsMember(ctx context.Context, tenantID, userID uint, segmentID uint64) (bool, error) {
	return false, nil
}
