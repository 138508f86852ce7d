// Command examctl is the operator console for the exam center database.
//
//	examctl audit [--action A] [--entity-type T] [--entity-id ID] [--limit N]
//	examctl verify <qr-payload>
//	examctl chain <ticket-code>
//	examctl expire
package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	config "github.com/anjiri1684/exam_center/configs"
	"github.com/anjiri1684/exam_center/database"
	"github.com/anjiri1684/exam_center/jobs"
	"github.com/anjiri1684/exam_center/models"
	"github.com/anjiri1684/exam_center/services"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		return nil
	}

	switch args[0] {
	case "verify":
		return runVerify(args[1:])
	case "audit":
		database.ConnectDB()
		return runAudit(args[1:])
	case "chain":
		database.ConnectDB()
		return runChain(args[1:])
	case "expire":
		database.ConnectDB()
		n := jobs.ExpireAttempts(database.DB, time.Now().UTC())
		color.Green("Expired %d attempt(s).", n)
		return nil
	}
	printUsage()
	return fmt.Errorf("unknown command %q", args[0])
}

func printUsage() {
	fmt.Fprint(os.Stderr, `examctl: exam center operator console

Commands:
  audit    list audit log entries, newest first
  verify   check a ticket QR payload against TICKET_QR_SECRET
  chain    show the reissue chain of a ticket
  expire   expire attempts past their due time now
`)
}

func runVerify(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: examctl verify <qr-payload>")
	}
	secret := config.Config("TICKET_QR_SECRET")
	if secret == "" {
		return errors.New("TICKET_QR_SECRET is not set")
	}

	code, ok := services.VerifyTicketPayload(args[0], []byte(secret))
	if !ok {
		color.Red("✗ payload is not a valid ticket signature")
		return errors.New("invalid payload")
	}
	color.Green("✓ valid signature for ticket %s", code)
	return nil
}

func runAudit(args []string) error {
	var filter services.AuditFilter
	var limit int

	flagSet := pflag.NewFlagSet("audit", pflag.ContinueOnError)
	flagSet.StringVar(&filter.Action, "action", "", "only entries with this action, e.g. ATTEMPT_LOCKED")
	flagSet.StringVar(&filter.EntityType, "entity-type", "", "only entries for this entity type (attempt, ticket)")
	flagSet.StringVar(&filter.EntityID, "entity-id", "", "only entries for this entity id")
	flagSet.IntVar(&limit, "limit", 50, "maximum number of entries")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	filter.Action = strings.ToUpper(filter.Action)

	entries, total, err := services.ListAuditLogs(database.DB, filter, 1, limit)
	if err != nil {
		return err
	}

	color.Yellow("\nAudit log (%d of %d)", len(entries), total)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Server Time", "Action", "Entity", "Actor", "Metadata"})
	for _, e := range entries {
		actor := "-"
		if e.ActorStaffUserID != nil {
			actor = e.ActorStaffUserID.String()
		}
		table.Append([]string{
			fmt.Sprintf("%d", e.ID),
			e.ServerTime.UTC().Format(time.RFC3339),
			e.Action,
			e.EntityType + ":" + e.EntityID,
			actor,
			formatMetadata(e.Metadata),
		})
	}
	table.Render()
	return nil
}

func runChain(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: examctl chain <ticket-code>")
	}
	ticket, err := services.GetTicketByCode(database.DB, strings.ToUpper(args[0]))
	if err != nil {
		return err
	}
	chain, err := services.TicketChain(database.DB, ticket.ID)
	if err != nil {
		return err
	}

	color.Yellow("\nTicket chain from %s", ticket.TicketCode)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Code", "Status", "Issued", "Replaced By"})
	for _, t := range chain {
		replacedBy := "-"
		if t.ReplacedByTicketID != nil {
			replacedBy = t.ReplacedByTicketID.String()
		}
		status := string(t.Status)
		if t.Status == models.TicketActive {
			status = color.GreenString(status)
		}
		table.Append([]string{t.TicketCode, status, t.CreatedAt.UTC().Format(time.RFC3339), replacedBy})
	}
	table.Render()
	return nil
}

func formatMetadata(m map[string]interface{}) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(parts, " ")
}
