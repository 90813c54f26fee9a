package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/anurisatria/assignd/internal/jobs"
	"github.com/anurisatria/assignd/internal/planner"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// PrintPlan outputs a campaign plan in the specified format
func PrintPlan(entries []planner.Entry, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(map[string][]planner.Entry{"plan": entries})
	case FormatYAML:
		return printYAML(entries)
	case FormatTable:
		return printPlanTable(entries)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintJobs outputs a job list in the specified format
func PrintJobs(list []*jobs.Job, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(map[string][]*jobs.Job{"jobs": list})
	case FormatYAML:
		return printYAML(list)
	case FormatTable:
		return printJobsTable(list)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintJob outputs a single job in the specified format
func PrintJob(job *jobs.Job, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(job)
	case FormatYAML:
		return printYAML(job)
	case FormatTable:
		return printJobsTable([]*jobs.Job{job})
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintLogs outputs a job's log stream. The table format prints plain lines
// since log messages do not fit a column layout.
func PrintLogs(logs []jobs.LogEntry, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(map[string][]jobs.LogEntry{"logs": logs})
	case FormatYAML:
		return printYAML(logs)
	case FormatTable:
		for _, entry := range logs {
			marker := " "
			if entry.IsError {
				marker = "!"
			}
			fmt.Printf("%s %s %s\n", entry.Timestamp.Format("15:04:05"), marker, entry.Message)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(data any) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printPlanTable(entries []planner.Entry) error {
	table := tablewriter.NewWriter(os.Stdout)

	table.Header("Campaign", "Processing Admins", "Excluded Admins", "Skipped")

	for _, e := range entries {
		skipped := ""
		if e.Skipped {
			skipped = "yes"
		}
		table.Append(
			fmt.Sprintf("%d", e.CampaignID),
			strings.Join(e.ProcessingAdmins, ", "),
			strings.Join(e.ExcludedAdmins, ", "),
			skipped,
		)
	}

	return table.Render()
}

func printJobsTable(list []*jobs.Job) error {
	table := tablewriter.NewWriter(os.Stdout)

	table.Header("Job ID", "Status", "Time Of Day", "Admins", "Started", "Message")

	for _, job := range list {
		names := make([]string, len(job.AdminPayloads))
		for i, p := range job.AdminPayloads {
			names[i] = p.Name
		}
		admins := strings.Join(names, ", ")
		if len(admins) > 40 {
			admins = admins[:37] + "..."
		}

		table.Append(
			job.ID,
			string(job.Status),
			job.TimeOfDay,
			admins,
			job.StartTime.Format("2006-01-02 15:04"),
			job.Message,
		)
	}

	return table.Render()
}
