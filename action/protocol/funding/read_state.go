// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package funding

import (
	"container/heap"
	"context"
	"math/big"

	"github.com/pkg/errors"

	"github.com/polimec/polimec-core/action/protocol"
	"github.com/polimec/polimec-core/pkg/util/byteutil"
	"github.com/polimec/polimec-core/state"
)

// ReadState reads the state of the funding protocol
func (p *Protocol) ReadState(_ context.Context, sr protocol.StateReader, method []byte, args ...[]byte) ([]byte, error) {
	switch string(method) {
	case "ProjectMetadata":
		projectID, err := argProjectID(args)
		if err != nil {
			return nil, err
		}
		meta, err := getMetadata(sr, projectID)
		if err != nil {
			return nil, err
		}
		return state.Serialize(meta)
	case "ProjectDetails":
		projectID, err := argProjectID(args)
		if err != nil {
			return nil, err
		}
		details, err := getDetails(sr, projectID)
		if err != nil {
			return nil, err
		}
		return state.Serialize(details)
	case "PercentFunded":
		projectID, err := argProjectID(args)
		if err != nil {
			return nil, err
		}
		details, err := getDetails(sr, projectID)
		if err != nil {
			return nil, err
		}
		meta, err := getMetadata(sr, projectID)
		if err != nil {
			return nil, err
		}
		return byteutil.Uint64ToBytesBigEndian(details.FundingRatioPercent(meta)), nil
	case "Bucket":
		projectID, err := argProjectID(args)
		if err != nil {
			return nil, err
		}
		bucket, err := getBucket(sr, projectID)
		if err != nil {
			return nil, err
		}
		return state.Serialize(bucket)
	case "TopEvaluations":
		projectID, n, err := argProjectIDAndCount(args)
		if err != nil {
			return nil, err
		}
		evals, err := listEvaluations(sr, projectID)
		if err != nil {
			return nil, err
		}
		rankedEvals := make([]ranked, len(evals))
		for i, e := range evals {
			rankedEvals[i].weight = e.USDAmount
			rankedEvals[i].payload = e
		}
		top := topN(rankedEvals, n)
		out := make([]*Evaluation, len(top))
		for i, r := range top {
			out[i] = r.payload.(*Evaluation)
		}
		return state.Serialize(out)
	case "TopBids":
		projectID, n, err := argProjectIDAndCount(args)
		if err != nil {
			return nil, err
		}
		bids, err := listBids(sr, projectID)
		if err != nil {
			return nil, err
		}
		rankedBids := make([]ranked, len(bids))
		for i, b := range bids {
			rankedBids[i].weight = b.TicketUSD
			rankedBids[i].payload = b
		}
		top := topN(rankedBids, n)
		out := make([]*Bid, len(top))
		for i, r := range top {
			out[i] = r.payload.(*Bid)
		}
		return state.Serialize(out)
	case "MigrationStatus":
		if len(args) < 2 {
			return nil, errors.New("missing participant argument")
		}
		projectID, err := argProjectID(args)
		if err != nil {
			return nil, err
		}
		rec, err := GetMigrationRecord(sr, projectID, string(args[1]))
		if err != nil {
			return nil, err
		}
		return state.Serialize(rec)
	default:
		return nil, errors.Errorf("invalid read method %s", string(method))
	}
}

func argProjectID(args [][]byte) (uint64, error) {
	if len(args) < 1 || len(args[0]) != 8 {
		return 0, errors.New("missing or malformed project id argument")
	}
	return byteutil.BytesToUint64BigEndian(args[0]), nil
}

func argProjectIDAndCount(args [][]byte) (uint64, int, error) {
	projectID, err := argProjectID(args)
	if err != nil {
		return 0, 0, err
	}
	if len(args) < 2 || len(args[1]) != 8 {
		return 0, 0, errors.New("missing or malformed count argument")
	}
	return projectID, int(byteutil.BytesToUint64BigEndian(args[1])), nil
}

type ranked struct {
	weight  *big.Int
	payload interface{}
}

// minHeap keeps the current top entries with the smallest on top, so the
// weakest entry is evicted in O(log n)
type minHeap []ranked

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i].weight.Cmp(h[j].weight) < 0 }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minHeap) Push(x interface{}) {
	*h = append(*h, x.(ranked))
}

func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topN returns the n heaviest entries in descending weight order
func topN(entries []ranked, n int) []ranked {
	if n <= 0 {
		return nil
	}
	h := &minHeap{}
	heap.Init(h)
	for _, e := range entries {
		if h.Len() < n {
			heap.Push(h, e)
			continue
		}
		if e.weight.Cmp((*h)[0].weight) > 0 {
			heap.Pop(h)
			heap.Push(h, e)
		}
	}
	out := make([]ranked, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(ranked)
	}
	return out
}
