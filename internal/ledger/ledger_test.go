package ledger

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/stretchr/testify/require"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/arenaerr"
)

type fakeRPC struct {
	txs      [][]byte
	txResult *coretypes.ResultBroadcastTxCommit
	txErr    error
	queries  map[string]*coretypes.ResultABCIQuery
}

func (f *fakeRPC) ABCIQuery(_ context.Context, path string, _ cmtbytes.HexBytes) (*coretypes.ResultABCIQuery, error) {
	if r, ok := f.queries[path]; ok {
		return r, nil
	}
	return &coretypes.ResultABCIQuery{Response: abci.QueryResponse{Code: 1, Log: "unknown query path"}}, nil
}

func (f *fakeRPC) BroadcastTxCommit(_ context.Context, tx cmttypes.Tx) (*coretypes.ResultBroadcastTxCommit, error) {
	f.txs = append(f.txs, tx)
	if f.txErr != nil {
		return nil, f.txErr
	}
	if f.txResult != nil {
		return f.txResult, nil
	}
	return &coretypes.ResultBroadcastTxCommit{}, nil
}

func newTestClient(t *testing.T, rpc *fakeRPC) (*Client, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return newClient(log.NewNopLogger(), rpc, "operator-1", priv), pub
}

func queryResult(v any) *coretypes.ResultABCIQuery {
	raw, _ := json.Marshal(v)
	return &coretypes.ResultABCIQuery{Response: abci.QueryResponse{Code: 0, Value: raw}}
}

func TestClientCreateTournamentSignsAndParsesID(t *testing.T) {
	rpc := &fakeRPC{
		txResult: &coretypes.ResultBroadcastTxCommit{
			TxResult: abci.ExecTxResult{
				Events: []abci.Event{{
					Type:       EventTournamentCreated,
					Attributes: []abci.EventAttribute{{Key: AttrTournamentID, Value: "7"}},
				}},
			},
		},
	}
	c, pub := newTestClient(t, rpc)

	id, err := c.CreateTournament(context.Background(), []string{"0xa", "0xb"}, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(7), id)
	require.Len(t, rpc.txs, 1)

	env, err := DecodeTxEnvelope(rpc.txs[0])
	require.NoError(t, err)
	require.Equal(t, TxCreateTournament, env.Type)
	require.Equal(t, "operator-1", env.Signer)
	require.Equal(t, "1", env.Nonce)
	require.True(t, ed25519.Verify(pub, txSignBytes(env.Type, env.Value, env.Nonce, env.Signer), env.Sig))

	var msg CreateTournamentTx
	require.NoError(t, json.Unmarshal(env.Value, &msg))
	require.Equal(t, []string{"0xa", "0xb"}, msg.Participants)
	require.Equal(t, 2, msg.Size)

	// Nonce moves on the next tx.
	require.NoError(t, c.LockBets(context.Background(), 3))
	env2, err := DecodeTxEnvelope(rpc.txs[1])
	require.NoError(t, err)
	require.Equal(t, "2", env2.Nonce)
}

func TestClientCreateTournamentWithoutEvent(t *testing.T) {
	c, _ := newTestClient(t, &fakeRPC{})
	_, err := c.CreateTournament(context.Background(), []string{"0xa", "0xb"}, 2)
	require.ErrorContains(t, err, "TournamentCreated")
}

func TestClientSurfacesABCIFailures(t *testing.T) {
	rpc := &fakeRPC{
		txResult: &coretypes.ResultBroadcastTxCommit{
			CheckTx: abci.CheckTxResponse{Code: 1, Log: "missing tx.sig"},
		},
	}
	c, _ := newTestClient(t, rpc)
	err := c.LockBets(context.Background(), 1)
	require.ErrorIs(t, err, arenaerr.ErrLedgerFailure)
	require.ErrorContains(t, err, "missing tx.sig")

	rpc.txResult = &coretypes.ResultBroadcastTxCommit{
		TxResult: abci.ExecTxResult{Code: 1, Log: "match not found"},
	}
	err = c.SettleBets(context.Background(), 1, SideB)
	require.ErrorIs(t, err, arenaerr.ErrLedgerFailure)
	require.ErrorContains(t, err, "match not found")
}

func TestClientSettleBetsRejectsBadWinner(t *testing.T) {
	rpc := &fakeRPC{}
	c, _ := newTestClient(t, rpc)
	err := c.SettleBets(context.Background(), 1, 2)
	require.ErrorIs(t, err, arenaerr.ErrInvalidArgument)
	require.Empty(t, rpc.txs)
}

func TestClientQueries(t *testing.T) {
	rpc := &fakeRPC{queries: map[string]*coretypes.ResultABCIQuery{
		QueryActiveAgents:       queryResult([]string{"0xa", "0xb"}),
		QueryAgentPrefix + "0xa": queryResult(AgentInfo{Address: "0xa", Name: "blinky-bane", Reputation: 900, Active: true}),
	}}
	c, _ := newTestClient(t, rpc)

	addrs, err := c.GetActiveAgents(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"0xa", "0xb"}, addrs)

	info, err := c.GetAgentInfo(context.Background(), "0xa")
	require.NoError(t, err)
	require.Equal(t, "blinky-bane", info.Name)
	require.Equal(t, uint64(900), info.Reputation)

	_, err = c.GetAgentInfo(context.Background(), "0xmissing")
	require.ErrorIs(t, err, arenaerr.ErrLedgerFailure)
}

func fastBackoff(attempts int) Backoff {
	return Backoff{Attempts: attempts, Base: time.Millisecond, Cap: 2 * time.Millisecond}
}

func TestRetryRecoversFromTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), log.NewNopLogger(), fastBackoff(5), "lockBets", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryExhaustsBudget(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), log.NewNopLogger(), fastBackoff(3), "settleBets", func(context.Context) error {
		calls++
		return errors.New("connection refused")
	})
	require.ErrorIs(t, err, arenaerr.ErrLedgerFailure)
	require.ErrorContains(t, err, "exhausted 3 attempts")
	require.Equal(t, 3, calls)
}

func TestRetryStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, log.NewNopLogger(), fastBackoff(5), "advanceTournament", func(context.Context) error {
		calls++
		cancel()
		return errors.New("connection refused")
	})
	require.ErrorIs(t, err, arenaerr.ErrLedgerFailure)
	require.Equal(t, 1, calls)
}

func TestMemoryTournamentLifecycle(t *testing.T) {
	m := NewMemory()
	m.RegisterAgent(AgentInfo{Address: "0xa", Reputation: 900, Active: true})
	m.RegisterAgent(AgentInfo{Address: "0xb", Reputation: 700, Active: false})
	m.RegisterAgent(AgentInfo{Address: "0xc", Reputation: 800, Active: true})

	ctx := context.Background()
	addrs, err := m.GetActiveAgents(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"0xa", "0xc"}, addrs)

	id, err := m.CreateTournament(ctx, addrs, 2)
	require.NoError(t, err)
	require.NoError(t, m.AdvanceTournament(ctx, id, []string{"0xa"}))
	require.NoError(t, m.FinalizeTournament(ctx, id, "0xa"))
	require.Error(t, m.FinalizeTournament(ctx, id, "0xa"))

	tt, ok := m.Tournament(id)
	require.True(t, ok)
	require.True(t, tt.Finalized)
	require.Equal(t, "0xa", tt.Champion)
	require.Equal(t, [][]string{{"0xa"}}, tt.Rounds)
}

func TestMemoryBetsLockThenSettleOnce(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.ErrorIs(t, m.SettleBets(ctx, 9, SideA), arenaerr.ErrLedgerFailure)
	require.NoError(t, m.LockBets(ctx, 9))
	require.ErrorIs(t, m.LockBets(ctx, 9), arenaerr.ErrLedgerFailure)
	require.NoError(t, m.SettleBets(ctx, 9, SideB))
	require.ErrorIs(t, m.SettleBets(ctx, 9, SideB), arenaerr.ErrLedgerFailure)

	w, ok := m.Settled(9)
	require.True(t, ok)
	require.Equal(t, SideB, w)
	require.Equal(t, []string{
		"settleBets(9,0)", "lockBets(9)", "lockBets(9)", "settleBets(9,1)", "settleBets(9,1)",
	}, m.Calls())
}

func TestMemoryFailureInjection(t *testing.T) {
	m := NewMemory()
	m.FailNext("lockBets", 2)
	ctx := context.Background()

	require.Error(t, m.LockBets(ctx, 1))
	require.Error(t, m.LockBets(ctx, 1))
	require.NoError(t, m.LockBets(ctx, 1))
	require.Len(t, m.CallsNamed("lockBets"), 3)
}
