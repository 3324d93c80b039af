package server

// Stats is a point-in-time view of the server for the status endpoint.
type Stats struct {
	Players int        `json:"players"`
	Rooms   []RoomStat `json:"rooms"`
}

// RoomStat summarizes one room.
type RoomStat struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Players int    `json:"players"`
	Status  string `json:"status"`
	Board   string `json:"board,omitempty"`
}

// Snapshot copies the current state under the server lock.
func (s *Server) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Players: s.sessions.Count()}
	for _, rm := range s.rooms.List() {
		st.Rooms = append(st.Rooms, RoomStat{
			ID:      rm.ID,
			Name:    rm.Name,
			Players: len(rm.Seats),
			Status:  string(rm.Status),
			Board:   rm.Board.String(),
		})
	}
	return st
}
