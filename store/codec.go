package store

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/poolvault-go/claim"
	"github.com/bitfsorg/poolvault-go/ledger"
	"github.com/bitfsorg/poolvault-go/revshare"
	"github.com/bitfsorg/poolvault-go/service"
)

// Amounts are stored as decimal strings so zero values survive gob, which
// drops zero-valued fields.

type snapshotRecord struct {
	Assets         []ledger.SupportedAsset
	FeeRate        string
	TotalDeposited string
	Deposited      map[string]string
	LastBalance    map[string]string
	AccruedFee     map[string]string
	Paused         bool
	Balances       []balanceRecord
	Allowances     []allowanceRecord
	Participants   []byte // revshare registry codec
}

type balanceRecord struct {
	Holder claim.Address
	Amount string
}

type allowanceRecord struct {
	Owner   claim.Address
	Spender claim.Address
	Amount  string
}

type requestRecord struct {
	ID          string
	TotalValue  string
	WinnerCount uint32
	TargetAsset string
	PaymentMode uint8
	RequestedAt time.Time
	Fulfilled   bool
	FulfilledAt time.Time
	RandomValue string
	Payouts     []payoutRecord
	Remainder   string
	Policy      uint8
}

type payoutRecord struct {
	Address claim.Address
	Value   string
	Amount  string
	Paid    bool
}

func encodeSnapshot(snap *Snapshot) ([]byte, error) {
	if snap == nil || snap.State == nil {
		return nil, fmt.Errorf("%w: snapshot", ErrNilParam)
	}
	st := snap.State
	reg, err := revshare.RegistryFrom(snap.Participants)
	if err != nil {
		return nil, fmt.Errorf("store: encode participants: %w", err)
	}
	participants, err := revshare.SerializeRegistry(reg)
	if err != nil {
		return nil, fmt.Errorf("store: encode participants: %w", err)
	}
	rec := snapshotRecord{
		Assets:         st.Assets,
		FeeRate:        amountString(st.FeeRate),
		TotalDeposited: amountString(st.TotalDeposited),
		Deposited:      amountStrings(st.Deposited),
		LastBalance:    amountStrings(st.LastBalance),
		AccruedFee:     amountStrings(st.AccruedFee),
		Paused:         st.Paused,
		Participants:   participants,
	}
	for _, b := range snap.Claims.Balances {
		rec.Balances = append(rec.Balances, balanceRecord{Holder: b.Holder, Amount: amountString(b.Amount)})
	}
	for _, a := range snap.Claims.Allowances {
		rec.Allowances = append(rec.Allowances, allowanceRecord{Owner: a.Owner, Spender: a.Spender, Amount: amountString(a.Amount)})
	}
	data, err := encodeGob(rec)
	if err != nil {
		return nil, fmt.Errorf("store: encode snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	var rec snapshotRecord
	if err := decodeGob(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: snapshot: %w", ErrCorrupt, err)
	}
	st := &ledger.VaultState{Assets: rec.Assets, Paused: rec.Paused}
	var err error
	if st.FeeRate, err = parseAmount(rec.FeeRate); err != nil {
		return nil, err
	}
	if st.TotalDeposited, err = parseAmount(rec.TotalDeposited); err != nil {
		return nil, err
	}
	if st.Deposited, err = parseAmounts(rec.Deposited); err != nil {
		return nil, err
	}
	if st.LastBalance, err = parseAmounts(rec.LastBalance); err != nil {
		return nil, err
	}
	if st.AccruedFee, err = parseAmounts(rec.AccruedFee); err != nil {
		return nil, err
	}
	st.Normalize()

	snap := &Snapshot{State: st}
	for _, b := range rec.Balances {
		amt, err := parseAmount(b.Amount)
		if err != nil {
			return nil, err
		}
		snap.Claims.Balances = append(snap.Claims.Balances, claim.Balance{Holder: b.Holder, Amount: amt})
	}
	for _, a := range rec.Allowances {
		amt, err := parseAmount(a.Amount)
		if err != nil {
			return nil, err
		}
		snap.Claims.Allowances = append(snap.Claims.Allowances, claim.Allowance{Owner: a.Owner, Spender: a.Spender, Amount: amt})
	}
	reg, err := revshare.DeserializeRegistry(rec.Participants)
	if err != nil {
		return nil, fmt.Errorf("%w: participants: %w", ErrCorrupt, err)
	}
	snap.Participants = reg.Members()
	return snap, nil
}

func encodeRequest(r *revshare.Request) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: request", ErrNilParam)
	}
	rec := requestRecord{
		ID:          string(r.ID),
		TotalValue:  amountString(r.TotalValue),
		WinnerCount: r.WinnerCount,
		TargetAsset: r.TargetAsset,
		PaymentMode: uint8(r.PaymentMode),
		RequestedAt: r.RequestedAt,
		Fulfilled:   r.Fulfilled,
		FulfilledAt: r.FulfilledAt,
		RandomValue: amountString(r.RandomValue),
		Remainder:   amountString(r.Remainder),
		Policy:      uint8(r.Policy),
	}
	for _, p := range r.Payouts {
		rec.Payouts = append(rec.Payouts, payoutRecord{
			Address: p.Address,
			Value:   amountString(p.Value),
			Amount:  amountString(p.Amount),
			Paid:    p.Paid,
		})
	}
	data, err := encodeGob(rec)
	if err != nil {
		return nil, fmt.Errorf("store: encode request %s: %w", r.ID, err)
	}
	return data, nil
}

func decodeRequest(data []byte) (*revshare.Request, error) {
	var rec requestRecord
	if err := decodeGob(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: request: %w", ErrCorrupt, err)
	}
	r := &revshare.Request{
		ID:          service.RequestID(rec.ID),
		WinnerCount: rec.WinnerCount,
		TargetAsset: rec.TargetAsset,
		PaymentMode: revshare.PaymentMode(rec.PaymentMode),
		RequestedAt: rec.RequestedAt,
		Fulfilled:   rec.Fulfilled,
		FulfilledAt: rec.FulfilledAt,
		Policy:      revshare.RemainderPolicy(rec.Policy),
	}
	var err error
	if r.TotalValue, err = parseAmount(rec.TotalValue); err != nil {
		return nil, err
	}
	if r.RandomValue, err = parseOptional(rec.RandomValue); err != nil {
		return nil, err
	}
	if r.Remainder, err = parseOptional(rec.Remainder); err != nil {
		return nil, err
	}
	for _, p := range rec.Payouts {
		value, err := parseAmount(p.Value)
		if err != nil {
			return nil, err
		}
		amount, err := parseOptional(p.Amount)
		if err != nil {
			return nil, err
		}
		r.Payouts = append(r.Payouts, revshare.Payout{Address: p.Address, Value: value, Amount: amount, Paid: p.Paid})
	}
	return r, nil
}

// amountString encodes nil as the empty string.
func amountString(v *uint256.Int) string {
	if v == nil {
		return ""
	}
	return v.Dec()
}

func amountStrings(m map[string]*uint256.Int) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = amountString(v)
	}
	return out
}

func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %w", ErrCorrupt, s, err)
	}
	return v, nil
}

func parseOptional(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, nil
	}
	return parseAmount(s)
}

func parseAmounts(m map[string]string) (map[string]*uint256.Int, error) {
	out := make(map[string]*uint256.Int, len(m))
	for k, s := range m {
		v, err := parseAmount(s)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
