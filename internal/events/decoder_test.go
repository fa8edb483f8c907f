package events

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

var (
	testFactory  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	testToken    = common.HexToAddress("0x2000000000000000000000000000000000000002")
	testManager  = common.HexToAddress("0x3000000000000000000000000000000000000003")
	testUser     = common.HexToAddress("0x4000000000000000000000000000000000000004")
	testTxHash   = common.HexToHash("0xabc0000000000000000000000000000000000000000000000000000000000001")
)

func newTestDecoder(t *testing.T) *Decoder {
	t.Helper()

	d, err := NewDecoder()
	require.NoError(t, err)

	return d
}

func amountData(t *testing.T, amount *big.Int) []byte {
	t.Helper()
	return common.LeftPadBytes(amount.Bytes(), 32)
}

func baseLog(emitter common.Address, topics []common.Hash, data []byte) *types.Log {
	return &types.Log{
		Address:     emitter,
		Topics:      topics,
		Data:        data,
		BlockNumber: 42,
		TxHash:      testTxHash,
		Index:       7,
	}
}

func TestDecoder_Topics(t *testing.T) {
	d := newTestDecoder(t)

	topics := d.Topics()
	require.Len(t, topics, 9)

	seen := make(map[common.Hash]struct{}, len(topics))
	for _, topic := range topics {
		seen[topic] = struct{}{}
	}
	require.Len(t, seen, 9, "topic hashes must be distinct")
}

func TestDecoder_ContractDeployed(t *testing.T) {
	d := newTestDecoder(t)

	data, err := d.factoryABI.Events["ContractDeployed"].Inputs.NonIndexed().Pack(
		big.NewInt(1_000_000), "Solar Farm Alpha", "SFA")
	require.NoError(t, err)

	l := baseLog(testFactory, []common.Hash{
		d.contractDeployedTopic,
		common.BigToHash(big.NewInt(3)),
		common.BytesToHash(testToken.Bytes()),
	}, data)

	ev, err := d.Decode(l, 1700000000)
	require.NoError(t, err)

	deployed, ok := ev.(*ContractDeployed)
	require.True(t, ok)
	require.Equal(t, "ContractDeployed", deployed.Name())
	require.Zero(t, big.NewInt(3).Cmp(deployed.ContractID))
	require.Equal(t, testToken, deployed.ContractAddress)
	require.Zero(t, big.NewInt(1_000_000).Cmp(deployed.MaxSupply))
	require.Equal(t, "Solar Farm Alpha", deployed.TokenName)
	require.Equal(t, "SFA", deployed.TokenSymbol)

	meta := deployed.EventMeta()
	require.Equal(t, testFactory, meta.Address)
	require.Equal(t, uint64(42), meta.BlockNumber)
	require.Equal(t, uint64(1700000000), meta.Timestamp)
	require.Equal(t, testTxHash, meta.TxHash)
	require.Equal(t, uint64(7), meta.LogIndex)
}

func TestDecoder_ManagerCreated(t *testing.T) {
	d := newTestDecoder(t)

	owner := common.HexToAddress("0x5000000000000000000000000000000000000005")
	data, err := d.managerFactoryABI.Events["ManagerCreated"].Inputs.NonIndexed().Pack(owner, "Green Fund")
	require.NoError(t, err)

	l := baseLog(testFactory, []common.Hash{
		d.managerCreatedTopic,
		common.BigToHash(big.NewInt(9)),
		common.BytesToHash(testManager.Bytes()),
	}, data)

	ev, err := d.Decode(l, 1700000001)
	require.NoError(t, err)

	created, ok := ev.(*ManagerCreated)
	require.True(t, ok)
	require.Zero(t, big.NewInt(9).Cmp(created.ManagerID))
	require.Equal(t, testManager, created.ManagerAddress)
	require.Equal(t, owner, created.Owner)
	require.Equal(t, "Green Fund", created.ManagerName)
}

func TestDecoder_AddressAmountEvents(t *testing.T) {
	d := newTestDecoder(t)
	amount := big.NewInt(12345)

	tests := []struct {
		name   string
		topic  common.Hash
		verify func(t *testing.T, ev Event)
	}{
		{
			name:  "BuyToken",
			topic: d.buyTokenTopic,
			verify: func(t *testing.T, ev Event) {
				buy, ok := ev.(*BuyToken)
				require.True(t, ok)
				require.Equal(t, testUser, buy.Buyer)
				require.Zero(t, amount.Cmp(buy.Amount))
			},
		},
		{
			name:  "SellToken",
			topic: d.sellTokenTopic,
			verify: func(t *testing.T, ev Event) {
				sell, ok := ev.(*SellToken)
				require.True(t, ok)
				require.Equal(t, testUser, sell.Seller)
				require.Zero(t, amount.Cmp(sell.Amount))
			},
		},
		{
			name:  "Deposit",
			topic: d.depositTopic,
			verify: func(t *testing.T, ev Event) {
				dep, ok := ev.(*Deposit)
				require.True(t, ok)
				require.Equal(t, testUser, dep.User)
			},
		},
		{
			name:  "Withdraw",
			topic: d.withdrawTopic,
			verify: func(t *testing.T, ev Event) {
				wd, ok := ev.(*Withdraw)
				require.True(t, ok)
				require.Equal(t, testUser, wd.User)
			},
		},
		{
			name:  "Invested",
			topic: d.investedTopic,
			verify: func(t *testing.T, ev Event) {
				inv, ok := ev.(*Invested)
				require.True(t, ok)
				require.Equal(t, testUser, inv.ProjectToken)
				require.Zero(t, amount.Cmp(inv.AmountTokenReceived))
			},
		},
		{
			name:  "Divested",
			topic: d.divestedTopic,
			verify: func(t *testing.T, ev Event) {
				div, ok := ev.(*Divested)
				require.True(t, ok)
				require.Equal(t, testUser, div.ProjectToken)
				require.Zero(t, amount.Cmp(div.AmountTokenSold))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := baseLog(testToken, []common.Hash{
				tt.topic,
				common.BytesToHash(testUser.Bytes()),
			}, amountData(t, amount))

			ev, err := d.Decode(l, 1700000002)
			require.NoError(t, err)
			require.Equal(t, tt.name, ev.Name())
			tt.verify(t, ev)
		})
	}
}

func TestDecoder_Swapped(t *testing.T) {
	d := newTestDecoder(t)

	from := common.HexToAddress("0x6000000000000000000000000000000000000006")
	to := common.HexToAddress("0x7000000000000000000000000000000000000007")

	data := append(
		amountData(t, big.NewInt(500)),
		amountData(t, big.NewInt(480))...)

	l := baseLog(testFactory, []common.Hash{
		d.swappedTopic,
		common.BytesToHash(testUser.Bytes()),
		common.BytesToHash(from.Bytes()),
		common.BytesToHash(to.Bytes()),
	}, data)

	ev, err := d.Decode(l, 1700000003)
	require.NoError(t, err)

	swapped, ok := ev.(*Swapped)
	require.True(t, ok)
	require.Equal(t, testUser, swapped.User)
	require.Equal(t, from, swapped.FromToken)
	require.Equal(t, to, swapped.ToToken)
	require.Zero(t, big.NewInt(500).Cmp(swapped.AmountIn))
	require.Zero(t, big.NewInt(480).Cmp(swapped.AmountOut))
}

func TestDecoder_UnknownAndMalformed(t *testing.T) {
	d := newTestDecoder(t)

	t.Run("no topics", func(t *testing.T) {
		_, err := d.Decode(&types.Log{}, 0)
		require.ErrorIs(t, err, ErrUnknownEvent)
	})

	t.Run("unknown signature", func(t *testing.T) {
		l := baseLog(testToken, []common.Hash{common.HexToHash("0xdead")}, nil)
		_, err := d.Decode(l, 0)
		require.ErrorIs(t, err, ErrUnknownEvent)
	})

	t.Run("wrong topic count", func(t *testing.T) {
		l := baseLog(testToken, []common.Hash{d.buyTokenTopic}, amountData(t, big.NewInt(1)))
		_, err := d.Decode(l, 0)
		require.ErrorContains(t, err, "expected 2 topics")
	})

	t.Run("wrong data size", func(t *testing.T) {
		l := baseLog(testToken, []common.Hash{
			d.buyTokenTopic,
			common.BytesToHash(testUser.Bytes()),
		}, []byte{0x01})
		_, err := d.Decode(l, 0)
		require.ErrorContains(t, err, "bytes of data")
	})
}
