package dispatch_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/tilegrid/comm"
	"github.com/katalvlaran/tilegrid/dispatch"
	"github.com/katalvlaran/tilegrid/matrix"
	"github.com/katalvlaran/tilegrid/tile"
)

func TestGemm_TicksReleaseBroadcastTiles(t *testing.T) {
	for _, target := range []dispatch.Target{dispatch.HostTask, dispatch.HostNest, dispatch.HostBatch} {
		t.Run(target.String(), func(t *testing.T) {
			rng := rand.New(rand.NewSource(3))
			A, B, C := randomDense(rng, 4, 2), randomDense(rng, 2, 2), randomDense(rng, 4, 2)
			var want mat.Dense
			want.Mul(A, B)
			want.Add(&want, C)

			w := runRanks(t, 2, func(ctx context.Context, c comm.Communicator) error {
				d := dispatch.New(target, 2)
				defer d.Close()

				// a and c rows live on rank i; b(0,0) lives on rank 0
				a, _ := matrix.New(4, 2, 2, 2, 2, 1, c)
				b, _ := matrix.New(2, 2, 2, 2, 2, 1, c)
				cm, _ := matrix.New(4, 2, 2, 2, 2, 1, c)
				for _, p := range []struct {
					m   matrix.Matrix
					src *mat.Dense
				}{{a, A}, {b, B}, {cm, C}} {
					if err := load(p.m, p.src); err != nil {
						return err
					}
				}

				list := matrix.BcastList{{I: 0, J: 0, Dests: []matrix.Matrix{cm}}}
				if err := b.ListBcast(ctx, list, tile.ColMajor); err != nil {
					return err
				}
				if c.Rank() == 1 && b.TileLife(0, 0) != 1 {
					return fmt.Errorf("life %d before the update", b.TileLife(0, 0))
				}

				if err := d.Gemm(ctx, 1, a, b, 1, cm, 0); err != nil {
					return err
				}
				if live := b.CheckTileLives(); len(live) != 0 {
					return fmt.Errorf("rank %d: live workspace %v", c.Rank(), live)
				}
				if c.Rank() == 1 && b.TileExists(0, 0, tile.HostNum) {
					return fmt.Errorf("broadcast copy kept after its last use")
				}

				got, err := gather(ctx, cm)
				if err != nil {
					return err
				}
				if !mat.EqualApprox(&want, got, tol) {
					return fmt.Errorf("rank %d: product differs", c.Rank())
				}
				return nil
			})
			assert.Zero(t, w.Pending())
		})
	}
}

func TestGemmA_PartialsReduceOntoOwners(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	A, B, C := randomDense(rng, 4, 2), randomDense(rng, 2, 4), randomDense(rng, 4, 4)
	var want mat.Dense
	want.Mul(A, B)
	want.Sub(C, &want)

	w := runRanks(t, 2, func(ctx context.Context, c comm.Communicator) error {
		d := dispatch.New(dispatch.HostTask, 0)
		defer d.Close()

		// a rows live on rank i, c columns on rank j: off-diagonal
		// products are computed away from their owner
		a, _ := matrix.New(4, 2, 2, 2, 2, 1, c)
		cm, _ := matrix.New(4, 4, 2, 2, 1, 2, c)
		if err := load(a, A); err != nil {
			return err
		}
		if err := load(cm, C); err != nil {
			return err
		}
		// every rank holds all of B
		b, _ := matrix.New(2, 4, 2, 2, 1, 1, comm.NewLocalWorld(1).Comm(0))
		if err := load(b, B); err != nil {
			return err
		}

		if err := d.GemmA(ctx, -1, a, b, 1, cm, 0); err != nil {
			return err
		}
		var list matrix.ReduceList
		for i := 0; i < cm.Mt(); i++ {
			for j := 0; j < cm.Nt(); j++ {
				list = append(list, matrix.ReduceEntry{
					I: i, J: j,
					Root: cm.Sub(i, i, j, j),
					Srcs: []matrix.Matrix{a.Sub(i, i, 0, 0)},
					Tag:  i,
				})
			}
		}
		if err := cm.ListReduce(ctx, list, tile.ColMajor); err != nil {
			return err
		}
		if st := cm.Stats(); st.Workspace != 0 {
			return fmt.Errorf("rank %d: %d partials kept", c.Rank(), st.Workspace)
		}

		got, err := gather(ctx, cm)
		if err != nil {
			return err
		}
		if !mat.EqualApprox(&want, got, tol) {
			return fmt.Errorf("rank %d: got\n%v", c.Rank(), mat.Formatted(got))
		}
		return nil
	})
	assert.Zero(t, w.Pending())
}
