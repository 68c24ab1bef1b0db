package ledger

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"strconv"
	"sync/atomic"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtbytes "github.com/cometbft/cometbft/libs/bytes"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/arenaerr"
)

// rpcClient is the slice of the CometBFT RPC surface the adapter uses.
type rpcClient interface {
	ABCIQuery(ctx context.Context, path string, data cmtbytes.HexBytes) (*coretypes.ResultABCIQuery, error)
	BroadcastTxCommit(ctx context.Context, tx cmttypes.Tx) (*coretypes.ResultBroadcastTxCommit, error)
}

// Client drives the arena chain over CometBFT RPC. Writes are JSON tx
// envelopes signed with the operator key; reads are ABCI queries.
type Client struct {
	logger log.Logger
	rpc    rpcClient
	signer string
	priv   ed25519.PrivateKey
	nonce  atomic.Uint64
}

var _ Ledger = (*Client)(nil)

func NewClient(logger log.Logger, remote, signer string, priv ed25519.PrivateKey) (*Client, error) {
	rpc, err := rpchttp.New(remote)
	if err != nil {
		return nil, errorsmod.Wrapf(arenaerr.ErrLedgerFailure, "rpc client for %s: %v", remote, err)
	}
	return newClient(logger, rpc, signer, priv), nil
}

func newClient(logger log.Logger, rpc rpcClient, signer string, priv ed25519.PrivateKey) *Client {
	return &Client{
		logger: logger.With("module", "ledger"),
		rpc:    rpc,
		signer: signer,
		priv:   priv,
	}
}

// submitTx signs, broadcasts and waits for commit, failing on any non-zero
// ABCI code.
func (c *Client) submitTx(ctx context.Context, typ string, value any) (*coretypes.ResultBroadcastTxCommit, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, errorsmod.Wrapf(arenaerr.ErrLedgerFailure, "marshal %s: %v", typ, err)
	}
	nonce := strconv.FormatUint(c.nonce.Add(1), 10)
	env := TxEnvelope{
		Type:   typ,
		Value:  raw,
		Nonce:  nonce,
		Signer: c.signer,
		Sig:    ed25519.Sign(c.priv, txSignBytes(typ, raw, nonce, c.signer)),
	}
	txBytes, err := json.Marshal(env)
	if err != nil {
		return nil, errorsmod.Wrapf(arenaerr.ErrLedgerFailure, "marshal envelope %s: %v", typ, err)
	}

	c.logger.Debug("broadcasting tx", "type", typ, "nonce", nonce)
	res, err := c.rpc.BroadcastTxCommit(ctx, cmttypes.Tx(txBytes))
	if err != nil {
		return nil, errorsmod.Wrapf(arenaerr.ErrLedgerFailure, "broadcast %s: %v", typ, err)
	}
	if res.CheckTx.Code != 0 {
		return nil, errorsmod.Wrapf(arenaerr.ErrLedgerFailure, "%s rejected in checkTx: %s", typ, res.CheckTx.Log)
	}
	if res.TxResult.Code != 0 {
		return nil, errorsmod.Wrapf(arenaerr.ErrLedgerFailure, "%s failed: %s", typ, res.TxResult.Log)
	}
	return res, nil
}

// query runs an ABCI query and decodes the JSON value into out.
func (c *Client) query(ctx context.Context, path string, out any) error {
	res, err := c.rpc.ABCIQuery(ctx, path, nil)
	if err != nil {
		return errorsmod.Wrapf(arenaerr.ErrLedgerFailure, "query %s: %v", path, err)
	}
	if res.Response.Code != 0 {
		return errorsmod.Wrapf(arenaerr.ErrLedgerFailure, "query %s: %s", path, res.Response.Log)
	}
	if err := json.Unmarshal(res.Response.Value, out); err != nil {
		return errorsmod.Wrapf(arenaerr.ErrLedgerFailure, "query %s: bad value: %v", path, err)
	}
	return nil
}

func (c *Client) GetActiveAgents(ctx context.Context) ([]string, error) {
	var addrs []string
	if err := c.query(ctx, QueryActiveAgents, &addrs); err != nil {
		return nil, err
	}
	return addrs, nil
}

func (c *Client) GetAgentInfo(ctx context.Context, addr string) (AgentInfo, error) {
	var info AgentInfo
	if err := c.query(ctx, QueryAgentPrefix+addr, &info); err != nil {
		return AgentInfo{}, err
	}
	return info, nil
}

func (c *Client) CreateTournament(ctx context.Context, participants []string, size int) (uint64, error) {
	res, err := c.submitTx(ctx, TxCreateTournament, CreateTournamentTx{Participants: participants, Size: size})
	if err != nil {
		return 0, err
	}
	raw, ok := eventAttr(res.TxResult.Events, EventTournamentCreated, AttrTournamentID)
	if !ok {
		return 0, errorsmod.Wrap(arenaerr.ErrLedgerFailure, "tx committed without TournamentCreated event")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errorsmod.Wrapf(arenaerr.ErrLedgerFailure, "bad tournamentId %q", raw)
	}
	c.logger.Info("tournament registered", "tournamentId", id, "participants", len(participants))
	return id, nil
}

func (c *Client) AdvanceTournament(ctx context.Context, id uint64, winners []string) error {
	_, err := c.submitTx(ctx, TxAdvanceTournament, AdvanceTournamentTx{TournamentID: id, Winners: winners})
	return err
}

func (c *Client) FinalizeTournament(ctx context.Context, id uint64, champion string) error {
	_, err := c.submitTx(ctx, TxFinalizeTournament, FinalizeTournamentTx{TournamentID: id, Champion: champion})
	return err
}

func (c *Client) LockBets(ctx context.Context, matchID uint64) error {
	_, err := c.submitTx(ctx, TxLockBets, LockBetsTx{MatchID: matchID})
	return err
}

func (c *Client) SettleBets(ctx context.Context, matchID uint64, winner uint8) error {
	if winner != SideA && winner != SideB {
		return errorsmod.Wrapf(arenaerr.ErrInvalidArgument, "winner %d", winner)
	}
	_, err := c.submitTx(ctx, TxSettleBets, SettleBetsTx{MatchID: matchID, Winner: winner})
	return err
}

func (c *Client) SubmitResult(ctx context.Context, res MatchResult) error {
	_, err := c.submitTx(ctx, TxSubmitResult, res)
	return err
}

// eventAttr pulls one attribute out of committed tx events.
func eventAttr(events []abci.Event, typ, key string) (string, bool) {
	for _, ev := range events {
		if ev.Type != typ {
			continue
		}
		for _, attr := range ev.Attributes {
			if attr.Key == key {
				return attr.Value, true
			}
		}
	}
	return "", false
}
