package views

type AdminView struct {
	Header
	Role       string         `json:"role"`
	Counts     Counts         `json:"counts"`
	Principals []PrincipalRow `json:"principals"`
	Pending    []PendingRow   `json:"pending"`
	Audit      AuditSummary   `json:"audit"`
	FileEvents []FileEventRow `json:"file_events"`
	Stats      *StatsRow      `json:"stats,omitempty"`
}

func Admin(r Reader, p Params) AdminView {
	rows, counts := principalRows(r, p.Level, true)
	return AdminView{
		Header:     header(r),
		Role:       "admin",
		Counts:     counts,
		Principals: rows,
		Pending:    pendingRows(r),
		Audit:      auditSummary(r),
		FileEvents: fileEventRows(r),
		Stats:      statsRow(r),
	}
}

// HRView is the personnel roster. It carries no device or network detail.
type HRView struct {
	Header
	Role       string         `json:"role"`
	Counts     Counts         `json:"counts"`
	Principals []PrincipalRow `json:"principals"`
}

func HR(r Reader, p Params) HRView {
	rows, counts := principalRows(r, p.Level, false)
	return HRView{
		Header:     header(r),
		Role:       "hr",
		Counts:     counts,
		Principals: rows,
	}
}

// EmployeeView shows the logged-in principal only.
type EmployeeView struct {
	Header
	Role      string        `json:"role"`
	Principal *PrincipalRow `json:"principal"`
	Sessions  []SessionRow  `json:"sessions"`
}

func Employee(r Reader, p Params) EmployeeView {
	v := EmployeeView{
		Header:   header(r),
		Role:     "employee",
		Sessions: SessionRows(r, p.Username),
	}
	st, now := r.State()
	if principal, ok := st.Principal(p.Username, now); ok {
		row := principalRow(principal, st, now, true)
		v.Principal = &row
	}
	return v
}

type SOCView struct {
	Header
	Role       string         `json:"role"`
	Counts     Counts         `json:"counts"`
	Principals []PrincipalRow `json:"principals"`
	Pending    []PendingRow   `json:"pending"`
	Network    []NetworkRow   `json:"network"`
	FileEvents []FileEventRow `json:"file_events"`
}

func SOC(r Reader, p Params) SOCView {
	rows, counts := principalRows(r, p.Level, true)
	return SOCView{
		Header:     header(r),
		Role:       "soc",
		Counts:     counts,
		Principals: rows,
		Pending:    pendingRows(r),
		Network:    networkRows(r, ""),
		FileEvents: fileEventRows(r),
	}
}
