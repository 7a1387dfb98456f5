// Package scenario provides the sequential UI scenario runner: one
// simulated operator walking the member/account frontend end to end.
// Unlike the concurrent probe workload, a scenario runs alone and
// aborts on the first failed stage.
package scenario

import (
	"context"
)

// Surface is the browser abstraction the scenario drives. Selectors
// are CSS. Implementations must make every call safe to use with a
// cancelled context.
type Surface interface {
	// Navigate loads the given URL.
	Navigate(ctx context.Context, url string) error

	// Fill types value into the element at selector, replacing any
	// existing content.
	Fill(ctx context.Context, selector, value string) error

	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error

	// ClickByText clicks the first button whose visible text contains
	// substring. The navigation tabs of the frontend carry no ids.
	ClickByText(ctx context.Context, substring string) error

	// SelectOption selects the option of the select element at
	// selector whose visible text contains substring.
	SelectOption(ctx context.Context, selector, substring string) error

	// AcceptNextDialog arms the surface to accept the next JavaScript
	// dialog, supplying input if it is a prompt. Must be called before
	// the action that triggers the dialog.
	AcceptNextDialog(ctx context.Context, input string) error

	// ClickRowButton clicks the button whose id starts with idPrefix
	// inside the first table row whose text contains rowText. The
	// accounts table lists every existing account, so row actions must
	// be scoped to the row, not taken from the whole page.
	ClickRowButton(ctx context.Context, rowText, idPrefix string) error

	// RowCellText returns the text of the cell-th column (1-based) of
	// the first table row whose text contains rowText.
	RowCellText(ctx context.Context, rowText string, cell int) (string, error)

	// Text returns the visible text of the first element matching
	// selector.
	Text(ctx context.Context, selector string) (string, error)

	// PageText returns the visible text of the whole page. Used for
	// toast detection and failure diagnostics.
	PageText(ctx context.Context) (string, error)
}
