package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"hostel_availability/internal/domain"
	"hostel_availability/internal/rangeops"
)

// MySQL error numbers mapped onto domain errors.
const (
	errDupEntry   = 1062
	errNoRefdRow2 = 1452
)

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isMySQLErr(err error, num uint16) bool {
	var me *driver.MySQLError
	return errors.As(err, &me) && me.Number == num
}

// Repo is the durable CalendarStore. The DSN must set parseTime=true and
// loc=UTC so DATE columns scan into UTC time.Time values.
type Repo struct{ db *sql.DB }

var _ domain.CalendarStore = (*Repo)(nil)

func New(db *sql.DB) *Repo { return &Repo{db: db} }

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(s scanner) (domain.Room, error) {
	var r domain.Room
	var roomType sql.NullString
	if err := s.Scan(&r.ID, &r.HostelID, &r.Capacity, &r.PriceCents, &roomType, &r.Version); err != nil {
		return domain.Room{}, err
	}
	r.RoomType = roomType.String
	return r, nil
}

func scanHostel(s scanner) (domain.Hostel, error) {
	var h domain.Hostel
	var name sql.NullString
	if err := s.Scan(&h.ID, &h.HostID, &name); err != nil {
		return domain.Hostel{}, err
	}
	h.Name = name.String
	return h, nil
}

func scanBooking(s scanner) (domain.Booking, error) {
	var b domain.Booking
	var start, end time.Time
	var status string
	if err := s.Scan(&b.ID, &b.RoomID, &b.HostelID, &b.GuestID, &start, &end, &status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return domain.Booking{}, err
	}
	b.Range = domain.Range{Start: domain.DateOf(start), End: domain.DateOf(end)}
	b.Status = domain.BookingStatus(status)
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, nil
}

func scanIntervals(rows *sql.Rows) ([]domain.Interval, error) {
	defer rows.Close()
	out := []domain.Interval{}
	for rows.Next() {
		var start, end time.Time
		var state string
		if err := rows.Scan(&start, &end, &state); err != nil {
			return nil, err
		}
		out = append(out, domain.Interval{Start: domain.DateOf(start), End: domain.DateOf(end), State: domain.DayState(state)})
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// catalog
// -----------------------------------------------------------------------------

func (r *Repo) UpsertHostel(ctx context.Context, h domain.Hostel) error {
	_, err := r.db.ExecContext(ctx, upsertHostelSQL, h.ID, h.HostID, valStr(h.Name))
	return err
}

func (r *Repo) UpsertRoom(ctx context.Context, rm domain.Room) error {
	_, err := r.db.ExecContext(ctx, upsertRoomSQL, rm.ID, rm.HostelID, rm.Capacity, rm.PriceCents, valStr(rm.RoomType))
	if isMySQLErr(err, errNoRefdRow2) {
		return fmt.Errorf("hostel %d: %w", rm.HostelID, domain.ErrNotFound)
	}
	return err
}

func (r *Repo) Hostel(ctx context.Context, id int64) (domain.Hostel, error) {
	h, err := scanHostel(r.db.QueryRowContext(ctx, getHostelSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Hostel{}, fmt.Errorf("hostel %d: %w", id, domain.ErrNotFound)
	}
	return h, err
}

func (r *Repo) Room(ctx context.Context, id int64) (domain.Room, error) {
	rm, err := scanRoom(r.db.QueryRowContext(ctx, getRoomSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Room{}, fmt.Errorf("room %d: %w", id, domain.ErrNotFound)
	}
	return rm, err
}

func (r *Repo) RoomsByHostel(ctx context.Context, hostelID int64) ([]domain.Room, error) {
	if _, err := r.Hostel(ctx, hostelID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, roomsByHostelSQL, hostelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Room{}
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rm)
	}
	return out, rows.Err()
}

func (r *Repo) HostelsByHost(ctx context.Context, hostID string) ([]domain.Hostel, error) {
	rows, err := r.db.QueryContext(ctx, hostelsByHostSQL, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Hostel{}
	for rows.Next() {
		h, err := scanHostel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// reads
// -----------------------------------------------------------------------------

func (r *Repo) GetIntervals(ctx context.Context, roomID int64, window domain.Range) ([]domain.Interval, error) {
	if _, err := r.Room(ctx, roomID); err != nil {
		return nil, err
	}
	if window.Empty() {
		return []domain.Interval{}, nil
	}
	rows, err := r.db.QueryContext(ctx, intervalsInWindowSQL, roomID, window.Start.Time(), window.End.Time())
	if err != nil {
		return nil, err
	}
	ivs, err := scanIntervals(rows)
	if err != nil {
		return nil, err
	}
	return rangeops.Dense(ivs, window), nil
}

func (r *Repo) Booking(ctx context.Context, id string) (domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, getBookingSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Booking{}, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	return b, err
}

// -----------------------------------------------------------------------------
// writes
// -----------------------------------------------------------------------------

// InRoomTx locks the room row for the duration of fn. The version bump and
// every write fn made commit together; any error rolls all of it back.
func (r *Repo) InRoomTx(ctx context.Context, roomID int64, fn func(tx domain.RoomTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	room, err := scanRoom(tx.QueryRowContext(ctx, lockRoomSQL, roomID))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("room %d: %w", roomID, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if err := fn(&roomTx{tx: tx, room: room}); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, bumpRoomVersionSQL, roomID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

type roomTx struct {
	tx   *sql.Tx
	room domain.Room
}

func (t *roomTx) Room() domain.Room { return t.room }

func (t *roomTx) Intervals(ctx context.Context) ([]domain.Interval, error) {
	rows, err := t.tx.QueryContext(ctx, intervalsSQL, t.room.ID)
	if err != nil {
		return nil, err
	}
	return scanIntervals(rows)
}

func (t *roomTx) ReplaceIntervals(ctx context.Context, ivs []domain.Interval) error {
	if err := rangeops.Validate(ivs); err != nil {
		return fmt.Errorf("room %d: %w", t.room.ID, err)
	}
	if _, err := t.tx.ExecContext(ctx, deleteIntervalsSQL, t.room.ID); err != nil {
		return err
	}
	if len(ivs) == 0 {
		return nil
	}
	values := make([]string, 0, len(ivs))
	args := make([]any, 0, len(ivs)*4)
	for _, iv := range ivs {
		values = append(values, "(?,?,?,?)")
		args = append(args, t.room.ID, iv.Start.Time(), iv.End.Time(), string(iv.State))
	}
	_, err := t.tx.ExecContext(ctx, insertIntervalsPrefix+strings.Join(values, ","), args...)
	return err
}

func (t *roomTx) Blocks(ctx context.Context) ([]domain.BlockRange, error) {
	rows, err := t.tx.QueryContext(ctx, blocksSQL, t.room.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.BlockRange{}
	for rows.Next() {
		var b domain.BlockRange
		var start, end time.Time
		var reason sql.NullString
		if err := rows.Scan(&b.ID, &start, &end, &reason); err != nil {
			return nil, err
		}
		b.RoomID = t.room.ID
		b.Range = domain.Range{Start: domain.DateOf(start), End: domain.DateOf(end)}
		b.Reason = reason.String
		out = append(out, b)
	}
	return out, rows.Err()
}

func (t *roomTx) ReplaceBlocks(ctx context.Context, bs []domain.BlockRange) error {
	for _, b := range bs {
		if b.Range.Empty() {
			return domain.Invariant("room %d: empty block range %s", t.room.ID, b.Range)
		}
	}
	if _, err := t.tx.ExecContext(ctx, deleteBlocksSQL, t.room.ID); err != nil {
		return err
	}
	if len(bs) == 0 {
		return nil
	}
	values := make([]string, 0, len(bs))
	args := make([]any, 0, len(bs)*5)
	for _, b := range bs {
		var id any
		if b.ID != 0 {
			id = b.ID
		}
		values = append(values, "(?,?,?,?,?)")
		args = append(args, id, t.room.ID, b.Range.Start.Time(), b.Range.End.Time(), valStr(b.Reason))
	}
	_, err := t.tx.ExecContext(ctx, insertBlocksPrefix+strings.Join(values, ","), args...)
	return err
}

func (t *roomTx) Booking(ctx context.Context, id string) (domain.Booking, error) {
	b, err := scanBooking(t.tx.QueryRowContext(ctx, getRoomBookingSQL, id, t.room.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Booking{}, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	return b, err
}

func (t *roomTx) InsertBooking(ctx context.Context, b domain.Booking) error {
	if b.RoomID != t.room.ID {
		return domain.Invariant("booking %s targets room %d inside room %d", b.ID, b.RoomID, t.room.ID)
	}
	_, err := t.tx.ExecContext(ctx, insertBookingSQL,
		b.ID, b.RoomID, b.HostelID, b.GuestID,
		b.Range.Start.Time(), b.Range.End.Time(),
		string(b.Status), b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	)
	if isMySQLErr(err, errDupEntry) {
		return fmt.Errorf("booking %s already exists", b.ID)
	}
	return err
}

func (t *roomTx) UpdateBooking(ctx context.Context, b domain.Booking) error {
	res, err := t.tx.ExecContext(ctx, updateBookingSQL, string(b.Status), b.UpdatedAt.UTC(), b.ID, t.room.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("booking %s: %w", b.ID, domain.ErrNotFound)
	}
	return nil
}
