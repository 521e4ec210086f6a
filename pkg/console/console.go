package console

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"github.com/jnywong/jupyterhub-cost-monitoring/internal/domain/entity"
)

// Console renders allocation reports on a terminal.
type Console struct{}

// NewConsole creates a new Console.
func NewConsole() *Console {
	return &Console{}
}

func (c *Console) Println(a ...interface{}) {
	fmt.Println(a...)
}

func (c *Console) LogInfo(format string, a ...interface{}) {
	pterm.Info.Printfln(format, a...)
}

func (c *Console) LogWarning(format string, a ...interface{}) {
	pterm.Warning.Printfln(format, a...)
}

func (c *Console) LogError(format string, a ...interface{}) {
	pterm.Error.Printfln(format, a...)
}

func (c *Console) LogSuccess(format string, a ...interface{}) {
	pterm.Success.Printfln(format, a...)
}

// Status starts a spinner with the given message.
func (c *Console) Status(message string) *pterm.SpinnerPrinter {
	spinner, _ := pterm.DefaultSpinner.Start(message)
	return spinner
}

var (
	BrightGreen  = color.New(color.FgGreen, color.Bold).SprintFunc()
	BrightYellow = color.New(color.FgYellow, color.Bold).SprintFunc()
	BrightCyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
)

// RenderComponentCosts renders per-component daily costs as a table.
func (c *Console) RenderComponentCosts(entries []entity.ComponentCost) string {
	tableData := pterm.TableData{{"Date", "Component", "Cost (USD)"}}
	for _, e := range entries {
		tableData = append(tableData, []string{
			e.Date,
			e.Component,
			strconv.FormatFloat(e.Cost, 'f', 2, 64),
		})
	}
	return renderTable(tableData)
}

// RenderUserCosts renders per-user daily costs as a table.
func (c *Console) RenderUserCosts(entries []entity.UserCost) string {
	tableData := pterm.TableData{{"Date", "Hub", "Component", "User", "Group", "Cost (USD)"}}
	for _, e := range entries {
		tableData = append(tableData, []string{
			e.Date,
			e.Hub,
			e.Component,
			e.User,
			e.UserGroup,
			strconv.FormatFloat(e.Value, 'f', 4, 64),
		})
	}
	return renderTable(tableData)
}

// RenderTotalCosts renders daily totals (account/attributable or per hub).
func (c *Console) RenderTotalCosts(entries []entity.TotalCost) string {
	tableData := pterm.TableData{{"Date", "Name", "Cost (USD)"}}
	for _, e := range entries {
		tableData = append(tableData, []string{
			e.Date,
			e.Name,
			strconv.FormatFloat(e.Cost, 'f', 2, 64),
		})
	}
	return renderTable(tableData)
}

func renderTable(data pterm.TableData) string {
	table := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan)).
		WithData(data)

	rendered, _ := table.Srender()
	return rendered
}
