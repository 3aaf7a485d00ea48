package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case User:
		o.printUser(v)
	case AuthResult:
		o.printAuthResult(v)
	case Availability:
		o.printAvailability(v)
	case Profile:
		o.printProfile(v)
	case RenameResult:
		o.printRenameResult(v)
	case PollResult:
		o.printPollResult(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// User response type (matches API)
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// AuthResult combines user and token
type AuthResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Availability response type
type Availability struct {
	Available bool `json:"available"`
}

// Vote response type
type Vote struct {
	PollID   int64  `json:"poll_id"`
	Username string `json:"username"`
	Option   string `json:"option"`
}

// Profile response type
type Profile struct {
	User  User   `json:"user"`
	Votes []Vote `json:"votes"`
}

// RenameResult response type
type RenameResult struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// PollResult response type
type PollResult struct {
	ID       int64          `json:"id"`
	Question string         `json:"question"`
	Options  map[string]int `json:"options"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printUser(u User) {
	fmt.Printf("Username: %s\n", u.Username)
	fmt.Printf("Email:    %s\n", u.Email)
	fmt.Printf("Role:     %s\n", u.Role)
}

func (o *Output) printAuthResult(a AuthResult) {
	o.printUser(a.User)
	fmt.Printf("Token:    %s...\n", truncate(a.Token, 16))
}

func (o *Output) printAvailability(a Availability) {
	if a.Available {
		fmt.Println("available")
	} else {
		fmt.Println("taken")
	}
}

func (o *Output) printProfile(p Profile) {
	o.printUser(p.User)
	if len(p.Votes) == 0 {
		fmt.Println("Votes:    none")
		return
	}
	fmt.Println("Votes:")
	for _, v := range p.Votes {
		fmt.Printf("  poll %d: %s\n", v.PollID, v.Option)
	}
}

func (o *Output) printRenameResult(r RenameResult) {
	fmt.Printf("Username: %s\n", r.Username)
	fmt.Printf("Token:    %s...\n", truncate(r.Token, 16))
}

func (o *Output) printPollResult(p PollResult) {
	fmt.Println(p.Question)
	options := make([]string, 0, len(p.Options))
	for option := range p.Options {
		options = append(options, option)
	}
	sort.Strings(options)
	for _, option := range options {
		fmt.Printf("  %-20s %d\n", option, p.Options[option])
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("Status: %s\n", strings.ToUpper(h.Status))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
