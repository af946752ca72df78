// Package service orchestrates reads, preconditions and writes between the
// HTTP handlers and the contract.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/chain"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/checkin"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/command"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/model"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/notify"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/reader"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/repository"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/txstatus"
)

// Precondition failures. The contract enforces the same rules; these let
// a caller see the problem without paying for a reverted transaction.
var (
	ErrNotFound           = errors.New("event not found")
	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrEventCancelled     = errors.New("event is cancelled")
	ErrAlreadyBooked      = errors.New("wallet has already booked this event")
	ErrEventFull          = errors.New("event is fully booked")
	ErrNotBooked          = errors.New("wallet has not booked this event")
	ErrAlreadyCheckedIn   = errors.New("wallet has already checked in")
	ErrNotOrganizer       = errors.New("wallet is not the event organizer")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidLink        = errors.New("invalid check-in link")
	// ErrScanReadOnly: checkIn(id) applies to the sending wallet, so the
	// attendee named by a scan link has to check in from their own wallet.
	ErrScanReadOnly = errors.New("scan links are read-only: the attendee checks in from their own wallet")
	// ErrNoSession is returned when the adapter cannot disconnect its wallet.
	ErrNoSession = errors.New("wallet session is not managed by this gateway")
)

// BalanceReader is implemented by adapters that can report the wallet's
// native balance.
type BalanceReader interface {
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
}

// Session is implemented by adapters whose wallet can be disconnected.
type Session interface {
	Disconnect()
}

// Deps are the collaborators of a Service.
type Deps struct {
	Contract      reader.ContractReader
	Directory     *reader.Directory
	Issuer        *command.Issuer
	Registry      *txstatus.Registry
	State         repository.StateStore
	Notifications notify.Source
	// Balance and Session are optional.
	Balance BalanceReader
	Session Session
	Logger  *slog.Logger
}

type Options struct {
	ChainID       int64
	PublicBaseURL string
	CheckInSource checkin.Source
	GuardOrder    checkin.GuardOrder
}

// Service is safe for concurrent use.
type Service struct {
	contract      reader.ContractReader
	directory     *reader.Directory
	issuer        *command.Issuer
	registry      *txstatus.Registry
	state         repository.StateStore
	notifications notify.Source
	balance       BalanceReader
	session       Session
	logger        *slog.Logger
	opts          Options
}

func New(deps Deps, opts Options) *Service {
	if opts.CheckInSource == "" {
		opts.CheckInSource = checkin.SourceQuery
	}
	if opts.GuardOrder == "" {
		opts.GuardOrder = checkin.ParamsFirst
	}
	return &Service{
		contract:      deps.Contract,
		directory:     deps.Directory,
		issuer:        deps.Issuer,
		registry:      deps.Registry,
		state:         deps.State,
		notifications: deps.Notifications,
		balance:       deps.Balance,
		session:       deps.Session,
		logger:        deps.Logger,
		opts:          opts,
	}
}

// Wallet describes the connected wallet.
func (s *Service) Wallet(ctx context.Context) WalletView {
	view := WalletView{ChainID: s.opts.ChainID}
	wallet := s.contract.Wallet()
	if wallet == nil {
		return view
	}
	view.Connected = true
	view.Address = wallet.Hex()
	view.Short = model.ShortAddress(*wallet)

	if s.balance != nil {
		bal, err := s.balance.Balance(ctx, *wallet)
		if err != nil {
			s.logger.Warn("balance read failed", "wallet", wallet.Hex(), "error", err)
			view.BalanceError = err.Error()
		} else {
			view.BalanceWei = bal.String()
			view.Balance = model.FormatAmount(bal)
		}
	}
	return view
}

// Disconnect drops the connected wallet. Attendee statuses become disabled
// at once, and the directory is refreshed without them.
func (s *Service) Disconnect(ctx context.Context) (WalletView, error) {
	if s.session == nil {
		return WalletView{}, ErrNoSession
	}
	s.session.Disconnect()
	s.directory.Trigger()
	return s.Wallet(ctx), nil
}

// ListEvents renders the latest directory snapshot. Statuses read for a
// wallet other than the one connected now are not shown.
func (s *Service) ListEvents() DirectoryView {
	snap := s.directory.Snapshot()
	wallet := s.contract.Wallet()

	view := DirectoryView{
		State:    snap.State,
		Events:   make([]ItemView, 0, len(snap.Items)),
		LoadedAt: snap.LoadedAt,
	}
	if snap.Err != nil {
		view.Error = snap.Err.Error()
	}
	if wallet != nil {
		view.Wallet = wallet.Hex()
	}

	sameWallet := sameAddress(snap.Wallet, wallet)
	for _, item := range snap.Items {
		status := item.Status
		if !sameWallet {
			status = reader.Disabled[model.AttendeeStatus]()
		}
		view.Events = append(view.Events, s.itemView(item.ID, item.Event, status, wallet))
	}
	return view
}

// GetEvent reads event id and the connected wallet's status for it.
func (s *Service) GetEvent(ctx context.Context, id uint64) (ItemView, error) {
	if err := s.checkExists(ctx, id); err != nil {
		return ItemView{}, err
	}
	wallet := s.contract.Wallet()

	event, err := s.contract.GetEvent(ctx, id)
	if err != nil {
		return ItemView{}, fmt.Errorf("get event: %w", err)
	}
	status := reader.Disabled[model.AttendeeStatus]()
	if wallet != nil {
		st, err := s.contract.AttendeeStatus(ctx, id, *wallet)
		if err != nil {
			status = reader.Failed[model.AttendeeStatus](err)
		} else {
			status = reader.Ready(st)
		}
	}
	return s.itemView(id, reader.Ready(event), status, wallet), nil
}

func (s *Service) itemView(id uint64, event reader.Query[model.Event], status reader.Query[model.AttendeeStatus], wallet *common.Address) ItemView {
	item := ItemView{ID: id, State: event.State, Error: event.ErrString()}
	if !event.Ok() {
		return item
	}
	ev := event.Data
	view := &EventView{
		Event:          ev,
		PriceFormatted: model.FormatAmount(ev.Price),
		OrganizerShort: model.ShortAddress(ev.Organizer),
		Remaining:      ev.Remaining(),
		Full:           model.IsFull(&ev),
		Cancelled:      model.IsCancelled(&ev),
		IsOrganizer:    model.IsOrganizer(&ev, wallet),
		StatusState:    status.State,
		StatusError:    status.ErrString(),
	}

	var st model.AttendeeStatus
	if status.Ok() {
		st = status.Data
		view.Status = &st
		view.Bookable = model.IsBookable(&ev, st, wallet)
		view.CanCheckIn = model.CanCheckIn(st, &ev)
	}

	view.Actions = Actions{
		Book:     model.BookAction(&ev, st, wallet, s.registry.Busy(txstatus.Slot(txstatus.ActionBook, id))),
		CheckIn:  model.CheckInAction(&ev, st, wallet, s.registry.Busy(txstatus.Slot(txstatus.ActionCheckIn, id))),
		Cancel:   model.OrganizerAction(&ev, wallet, s.registry.Busy(txstatus.Slot(txstatus.ActionCancel, id)), false),
		Withdraw: model.OrganizerAction(&ev, wallet, s.registry.Busy(txstatus.Slot(txstatus.ActionWithdraw, id)), true),
	}
	if wallet != nil && !status.Ok() && !model.IsCancelled(&ev) {
		view.Actions.Book = model.ActionLoading
		view.Actions.CheckIn = model.ActionLoading
	}
	item.Event = view
	return item
}

// checkExists returns ErrNotFound unless id is below the current event
// count.
func (s *Service) checkExists(ctx context.Context, id uint64) error {
	count, err := s.contract.EventCount(ctx)
	if err != nil {
		return fmt.Errorf("event count: %w", err)
	}
	if id >= count {
		return ErrNotFound
	}
	return nil
}

// TxStatus returns the tracker state of slot.
func (s *Service) TxStatus(slot string) txstatus.Status {
	return s.registry.Status(slot)
}

// TxStatuses returns every slot that has been used.
func (s *Service) TxStatuses() []txstatus.Status {
	return s.registry.Statuses()
}

const maxNotifications = 100

// Notifications returns up to limit recent notifications, newest first.
func (s *Service) Notifications(ctx context.Context, limit int) ([]notify.Notification, error) {
	if limit <= 0 || limit > maxNotifications {
		limit = maxNotifications
	}
	ns, err := s.notifications.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return ns, nil
}

// ShowCheckIn remembers id as the event to check in to and returns the
// links for it.
func (s *Service) ShowCheckIn(ctx context.Context, id uint64) (CheckInLink, error) {
	if err := s.checkExists(ctx, id); err != nil {
		return CheckInLink{}, err
	}
	if err := s.state.Set(ctx, checkin.StateKey, strconv.FormatUint(id, 10)); err != nil {
		return CheckInLink{}, fmt.Errorf("persist check-in event: %w", err)
	}

	link := CheckInLink{
		EventID: id,
		URL:     checkin.URL(s.opts.PublicBaseURL, id, nil),
	}
	if wallet := s.contract.Wallet(); wallet != nil {
		link.ScanURL = checkin.URL(s.opts.PublicBaseURL, id, wallet)
	}
	return link, nil
}

// storedEventID returns the persisted check-in event id, or nil when
// there is none or it does not parse.
func (s *Service) storedEventID(ctx context.Context) *uint64 {
	raw, err := s.state.Get(ctx, checkin.StateKey)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("read persisted check-in event failed", "error", err)
		}
		return nil
	}
	id, ok := checkin.ParseEventID(strings.TrimSpace(raw))
	if !ok {
		s.logger.Warn("ignoring malformed persisted check-in event", "value", raw)
		return nil
	}
	return &id
}

func sameAddress(a, b *common.Address) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// walletOrErr returns the connected wallet or ErrWalletNotConnected.
func (s *Service) walletOrErr() (common.Address, error) {
	wallet := s.contract.Wallet()
	if wallet == nil {
		return common.Address{}, ErrWalletNotConnected
	}
	return *wallet, nil
}

// submitted describes an accepted write.
func (s *Service) submitted(slot string, h *chain.Handle) TxView {
	status := s.registry.Status(slot)
	return TxView{Slot: slot, HandleID: h.ID().String(), Method: h.Method(), Status: status}
}
