package lead

import "time"

// ExportHeader names the CSV columns of ExportRows.
var ExportHeader = []string{
	"id", "merchantName", "category", "region", "city",
	"contactName", "contactPhone", "contactEmail", "status",
	"assignedOwner", "submittedBy", "submittedAt", "lastUpdatedAt", "previousLeadId",
}

// ExportRows flattens leads for CSV export.
func ExportRows(leads []Lead) [][]string {
	rows := make([][]string, 0, len(leads))
	for _, l := range leads {
		owner := ""
		if l.AssignedOwner != nil {
			owner = l.AssignedOwner.Name
		}
		submitted := ""
		if l.SubmittedAt != nil {
			submitted = l.SubmittedAt.Format(time.RFC3339)
		}
		rows = append(rows, []string{
			l.ID, l.MerchantName, l.Category, l.Region, l.City,
			l.ContactName, l.ContactPhone, l.ContactEmail, string(l.Status),
			owner, l.SubmittedBy.Name, submitted, l.LastUpdatedAt.Format(time.RFC3339), l.PreviousLeadID,
		})
	}
	return rows
}
