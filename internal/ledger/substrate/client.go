// Package substrate implements the ledger node port on top of
// go-substrate-rpc-client, targeting a runtime with the Balances, Sudo
// and ImbueProposals pallets.
package substrate

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"

	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	gethrpc "github.com/centrifuge/go-substrate-rpc-client/v4/gethrpc"
	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/centrifuge/go-substrate-rpc-client/v4/xxhash"

	"github.com/ImbueNetwork/imbue-faucet/internal/address"
	"github.com/ImbueNetwork/imbue-faucet/internal/ledger"
)

const (
	proposalsPallet  = "ImbueProposals"
	projectsStorage  = "Projects"
	callTransfer     = "Balances.transfer"
	callSudo         = "Sudo.sudo"
	callSchedule     = "ImbueProposals.schedule_round"
	callApprove      = "ImbueProposals.approve"
	projectKeySuffix = 4
)

// Dialer opens websocket sessions with a node.
type Dialer struct {
	url     string
	network uint16
}

// NewDialer returns a Dialer for the node at url. network is the SS58
// address type used to render and parse account ids.
func NewDialer(url string, network uint16) *Dialer {
	return &Dialer{url: url, network: network}
}

// Dial connects and loads the runtime metadata needed to build calls.
func (d *Dialer) Dial(ctx context.Context) (ledger.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	api, err := gsrpc.NewSubstrateAPI(d.url)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", d.url, err)
	}
	meta, err := api.RPC.State.GetMetadataLatest()
	if err != nil {
		api.Client.Close()
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}
	return &conn{api: api, meta: meta, network: d.network}, nil
}

type conn struct {
	api     *gsrpc.SubstrateAPI
	meta    *types.Metadata
	network uint16
	signer  *signature.KeyringPair
}

func (c *conn) ChainInfo(ctx context.Context) (ledger.ChainInfo, error) {
	if err := ctx.Err(); err != nil {
		return ledger.ChainInfo{}, err
	}
	chain, err := c.api.RPC.System.Chain()
	if err != nil {
		return ledger.ChainInfo{}, fmt.Errorf("system_chain: %w", err)
	}
	name, err := c.api.RPC.System.Name()
	if err != nil {
		return ledger.ChainInfo{}, fmt.Errorf("system_name: %w", err)
	}
	version, err := c.api.RPC.System.Version()
	if err != nil {
		return ledger.ChainInfo{}, fmt.Errorf("system_version: %w", err)
	}
	return ledger.ChainInfo{Chain: string(chain), NodeName: string(name), NodeVersion: string(version)}, nil
}

// Projects reads every entry of ImbueProposals.Projects. The map has no
// index by initiator, so callers scan the full list. Entries are ordered
// by project key, which the pallet assigns incrementally.
func (c *conn) Projects(ctx context.Context) ([]ledger.Project, error) {
	prefix := append(xxhash.New128([]byte(proposalsPallet)).Sum(nil), xxhash.New128([]byte(projectsStorage)).Sum(nil)...)
	keys, err := c.api.RPC.State.GetKeysLatest(types.NewStorageKey(prefix))
	if err != nil {
		return nil, fmt.Errorf("state_getKeys: %w", err)
	}

	projects := make([]ledger.Project, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(key) < len(prefix)+projectKeySuffix {
			continue
		}
		data, err := c.api.RPC.State.GetStorageRawLatest(key)
		if err != nil {
			return nil, fmt.Errorf("state_getStorage: %w", err)
		}
		if data == nil || len(*data) == 0 {
			continue
		}
		var raw rawProject
		if err := codec.Decode(*data, &raw); err != nil {
			return nil, fmt.Errorf("decode project %x: %w", key, err)
		}
		p, err := raw.toProject(binary.LittleEndian.Uint32(key[len(key)-projectKeySuffix:]), c.network)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Key < projects[j].Key })
	return projects, nil
}

func (c *conn) LatestBlock(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	header, err := c.api.RPC.Chain.GetHeaderLatest()
	if err != nil {
		return 0, fmt.Errorf("chain_getHeader: %w", err)
	}
	return uint64(header.Number), nil
}

// UseCredential derives an sr25519 keypair from a BIP39 phrase or
// secret URI.
func (c *conn) UseCredential(mnemonic string) (ledger.SigningIdentity, error) {
	kp, err := signature.KeyringPairFromSecret(mnemonic, c.network)
	if err != nil {
		return ledger.SigningIdentity{}, err
	}
	c.signer = &kp
	return ledger.SigningIdentity{Address: kp.Address}, nil
}

func (c *conn) Transfer(ctx context.Context, to string, amount *big.Int) (ledger.TxHash, error) {
	dest, err := address.Parse(to, c.network)
	if err != nil {
		return "", err
	}
	ma, err := types.NewMultiAddressFromAccountID(dest.AccountID())
	if err != nil {
		return "", err
	}
	call, err := types.NewCall(c.meta, callTransfer, ma, types.NewUCompact(amount))
	if err != nil {
		return "", fmt.Errorf("build %s: %w", callTransfer, err)
	}
	return c.submit(ctx, call)
}

func (c *conn) ScheduleRound(ctx context.Context, projectKeys []uint32, startBlock, endBlock uint64) (ledger.TxHash, error) {
	keys := make([]types.U32, len(projectKeys))
	for i, k := range projectKeys {
		keys[i] = types.NewU32(k)
	}
	start, err := blockNumber(startBlock)
	if err != nil {
		return "", err
	}
	end, err := blockNumber(endBlock)
	if err != nil {
		return "", err
	}
	inner, err := types.NewCall(c.meta, callSchedule, start, end, keys)
	if err != nil {
		return "", fmt.Errorf("build %s: %w", callSchedule, err)
	}
	return c.sudo(ctx, inner)
}

func (c *conn) ApproveFunding(ctx context.Context, projectKey uint32, milestone *uint32) (ledger.TxHash, error) {
	var keys milestoneKeys
	if milestone != nil {
		keys = milestoneKeys{set: true, keys: []types.U32{types.NewU32(*milestone)}}
	}
	inner, err := types.NewCall(c.meta, callApprove, types.NewU32(projectKey), keys)
	if err != nil {
		return "", fmt.Errorf("build %s: %w", callApprove, err)
	}
	return c.sudo(ctx, inner)
}

func (c *conn) Close() error {
	c.api.Client.Close()
	return nil
}

func (c *conn) sudo(ctx context.Context, inner types.Call) (ledger.TxHash, error) {
	call, err := types.NewCall(c.meta, callSudo, inner)
	if err != nil {
		return "", fmt.Errorf("build %s: %w", callSudo, err)
	}
	return c.submit(ctx, call)
}

// submit signs call with the current nonce and hands it to the node's
// pool without waiting for inclusion.
func (c *conn) submit(ctx context.Context, call types.Call) (ledger.TxHash, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.signer == nil {
		return "", ledger.ErrNoCredential
	}

	genesis, err := c.api.RPC.Chain.GetBlockHash(0)
	if err != nil {
		return "", fmt.Errorf("chain_getBlockHash: %w", err)
	}
	rv, err := c.api.RPC.State.GetRuntimeVersionLatest()
	if err != nil {
		return "", fmt.Errorf("state_getRuntimeVersion: %w", err)
	}
	accountKey, err := types.CreateStorageKey(c.meta, "System", "Account", c.signer.PublicKey)
	if err != nil {
		return "", fmt.Errorf("account storage key: %w", err)
	}
	var account types.AccountInfo
	if _, err := c.api.RPC.State.GetStorageLatest(accountKey, &account); err != nil {
		return "", fmt.Errorf("read signer account: %w", err)
	}

	ext := types.NewExtrinsic(call)
	opts := types.SignatureOptions{
		BlockHash:          genesis,
		Era:                types.ExtrinsicEra{IsMortalEra: false},
		GenesisHash:        genesis,
		Nonce:              types.NewUCompactFromUInt(uint64(account.Nonce)),
		SpecVersion:        rv.SpecVersion,
		Tip:                types.NewUCompactFromUInt(0),
		TransactionVersion: rv.TransactionVersion,
	}
	if err := ext.Sign(*c.signer, opts); err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	hash, err := c.api.RPC.Author.SubmitExtrinsic(ext)
	if err != nil {
		return "", submitError(err)
	}
	return ledger.TxHash(hash.Hex()), nil
}

// submitError tells a node refusal apart from a lost reply. Only a
// JSON-RPC error object proves the extrinsic was not accepted.
func submitError(err error) error {
	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("author_submitExtrinsic: %w", err)
	}
	return fmt.Errorf("author_submitExtrinsic: %w: %w", ledger.ErrUnconfirmed, err)
}

// blockNumber narrows h to the runtime's u32 block number.
func blockNumber(h uint64) (types.U32, error) {
	if h > math.MaxUint32 {
		return 0, fmt.Errorf("block %d does not fit in a u32 block number", h)
	}
	return types.NewU32(uint32(h)), nil
}
