package mysql

// -----------------------------------------------------------------------------
// CATALOG
// -----------------------------------------------------------------------------

const upsertHostelSQL = `
INSERT INTO hostels (id, host_id, name)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE
  host_id    = VALUES(host_id),
  name       = VALUES(name),
  updated_at = CURRENT_TIMESTAMP
`

// version is owned by the room transaction; catalog syncs never reset it.
const upsertRoomSQL = `
INSERT INTO rooms (id, hostel_id, capacity, price_cents, room_type)
VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  hostel_id   = VALUES(hostel_id),
  capacity    = VALUES(capacity),
  price_cents = VALUES(price_cents),
  room_type   = VALUES(room_type),
  updated_at  = CURRENT_TIMESTAMP
`

const getHostelSQL = `SELECT id, host_id, name FROM hostels WHERE id = ?`

const hostelsByHostSQL = `SELECT id, host_id, name FROM hostels WHERE host_id = ? ORDER BY id`

const roomColumns = `id, hostel_id, capacity, price_cents, room_type, version`

const getRoomSQL = `SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`

const roomsByHostelSQL = `SELECT ` + roomColumns + ` FROM rooms WHERE hostel_id = ? ORDER BY id`

// -----------------------------------------------------------------------------
// ROOM TRANSACTION
// -----------------------------------------------------------------------------

// Row lock serialising every read-modify-write on one room.
const lockRoomSQL = `SELECT ` + roomColumns + ` FROM rooms WHERE id = ? FOR UPDATE`

const bumpRoomVersionSQL = `UPDATE rooms SET version = version + 1 WHERE id = ?`

const intervalsSQL = `
SELECT start_date, end_date, state
FROM room_intervals
WHERE room_id = ?
ORDER BY start_date
`

const intervalsInWindowSQL = `
SELECT start_date, end_date, state
FROM room_intervals
WHERE room_id = ? AND end_date > ? AND start_date < ?
ORDER BY start_date
`

const deleteIntervalsSQL = `DELETE FROM room_intervals WHERE room_id = ?`

const insertIntervalsPrefix = "INSERT INTO room_intervals (room_id, start_date, end_date, state)\nVALUES "

const blocksSQL = `
SELECT id, start_date, end_date, reason
FROM block_ranges
WHERE room_id = ?
ORDER BY start_date, id
`

const deleteBlocksSQL = `DELETE FROM block_ranges WHERE room_id = ?`

// A NULL id lets AUTO_INCREMENT assign one to new pieces.
const insertBlocksPrefix = "INSERT INTO block_ranges (id, room_id, start_date, end_date, reason)\nVALUES "

// -----------------------------------------------------------------------------
// BOOKINGS
// -----------------------------------------------------------------------------

const bookingColumns = `id, room_id, hostel_id, guest_id, start_date, end_date, status, created_at, updated_at`

const getBookingSQL = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`

const getRoomBookingSQL = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? AND room_id = ? FOR UPDATE`

const insertBookingSQL = `
INSERT INTO bookings (` + bookingColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateBookingSQL = `
UPDATE bookings
SET status = ?, updated_at = ?
WHERE id = ? AND room_id = ?
`
