package sqlstore

import "database/sql"

// Store groups the repositories that share one database handle.
type Store struct {
	Meetings *MeetingRepository
	Chunks   *ChunkRepository
	Segments *SegmentRepository
	Minutes  *MinutesRepository
	Tasks    *TaskRepository
	Locks    *MeetingLocker
}

func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		Meetings: NewMeetingRepository(db, dialect),
		Chunks:   NewChunkRepository(db, dialect),
		Segments: NewSegmentRepository(db, dialect),
		Minutes:  NewMinutesRepository(db, dialect),
		Tasks:    NewTaskRepository(db, dialect),
		Locks:    NewMeetingLocker(db, dialect),
	}
}
