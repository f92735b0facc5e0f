package comm

import (
	"context"
	"math"
	"slices"

	"github.com/pkg/errors"
)

// ReduceOp combines src into dst elementwise.
type ReduceOp func(dst, src []float64)

// Sum adds src into dst.
func Sum(dst, src []float64) {
	for i, v := range src {
		dst[i] += v
	}
}

// Max keeps the elementwise maximum, propagating NaN.
func Max(dst, src []float64) {
	for i, v := range src {
		if v > dst[i] || math.IsNaN(v) {
			dst[i] = v
		}
	}
}

// position returns the index of rank in the sorted set, or -1.
func position(ranks []int, rank int) int {
	i, ok := slices.BinarySearch(ranks, rank)
	if !ok {
		return -1
	}
	return i
}

// relative maps the caller and root into tree coordinates with the root at 0.
func relative(ranks []int, root, me int) (rel, rootPos int, err error) {
	rootPos = position(ranks, root)
	if rootPos < 0 {
		return 0, 0, errors.Wrapf(ErrNotMember, "comm: root %d", root)
	}
	pos := position(ranks, me)
	if pos < 0 {
		return -1, rootPos, nil
	}
	n := len(ranks)
	return (pos - rootPos + n) % n, rootPos, nil
}

// absolute maps a tree coordinate back to a rank.
func absolute(ranks []int, rootPos, rel int) int {
	return ranks[(rel+rootPos)%len(ranks)]
}

// Bcast sends buf from root to every rank of the sorted set ranks along a
// binomial tree. Ranks outside the set return immediately.
//
// Complexity:
//   - ceil(log2(len(ranks))) message rounds.
func Bcast(ctx context.Context, c Communicator, root int, ranks []int, tag Tag, buf []float64) error {
	rel, rootPos, err := relative(ranks, root, c.Rank())
	if err != nil || rel < 0 {
		return err
	}
	n := len(ranks)

	// 1. Receive from the parent: the lowest set bit of rel.
	mask := 1
	for mask < n {
		if rel&mask != 0 {
			src := absolute(ranks, rootPos, rel-mask)
			if err := c.Recv(ctx, src, tag, buf); err != nil {
				return errors.WithMessage(err, "comm: bcast")
			}
			break
		}
		mask <<= 1
	}

	// 2. Forward to children below that bit.
	for mask >>= 1; mask > 0; mask >>= 1 {
		if rel+mask < n {
			dst := absolute(ranks, rootPos, rel+mask)
			if err := c.Send(ctx, dst, tag, buf); err != nil {
				return errors.WithMessage(err, "comm: bcast")
			}
		}
	}
	return nil
}

// Reduce combines buf of every rank of ranks with op onto root along a
// binomial tree. On non-root ranks buf is used as scratch.
func Reduce(ctx context.Context, c Communicator, root int, ranks []int, tag Tag, buf []float64, op ReduceOp) error {
	rel, rootPos, err := relative(ranks, root, c.Rank())
	if err != nil || rel < 0 {
		return err
	}
	n := len(ranks)
	tmp := make([]float64, len(buf))

	for mask := 1; mask < n; mask <<= 1 {
		if rel&mask == 0 {
			child := rel | mask
			if child >= n {
				continue
			}
			if err := c.Recv(ctx, absolute(ranks, rootPos, child), tag, tmp); err != nil {
				return errors.WithMessage(err, "comm: reduce")
			}
			op(buf, tmp)
			continue
		}
		parent := absolute(ranks, rootPos, rel&^mask)
		if err := c.Send(ctx, parent, tag, buf); err != nil {
			return errors.WithMessage(err, "comm: reduce")
		}
		break
	}
	return nil
}

// AllreduceSum leaves the elementwise sum over all ranks in buf.
func AllreduceSum(ctx context.Context, c Communicator, tag Tag, buf []float64) error {
	return allreduce(ctx, c, tag, buf, Sum)
}

// AllreduceMax leaves the elementwise maximum over all ranks in buf.
func AllreduceMax(ctx context.Context, c Communicator, tag Tag, buf []float64) error {
	return allreduce(ctx, c, tag, buf, Max)
}

func allreduce(ctx context.Context, c Communicator, tag Tag, buf []float64, op ReduceOp) error {
	all := Ranks(c.Size())
	if err := Reduce(ctx, c, 0, all, tag, buf, op); err != nil {
		return err
	}
	return Bcast(ctx, c, 0, all, tag, buf)
}

// Ranks returns 0..n-1.
func Ranks(n int) []int {
	r := make([]int, n)
	for i := range r {
		r[i] = i
	}
	return r
}
