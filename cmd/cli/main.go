package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		handleAuth(args)
	case "entry":
		handleEntry(args)
	case "stats":
		handleStats(args)
	case "company":
		handleCompany(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: timetrack auth <register|login|logout|who>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "register":
		registerUser(args[1:])
	case "login":
		loginUser(args[1:])
	case "logout":
		logoutUser()
	case "who":
		whoAmI()
	default:
		fmt.Printf("unknown auth command: %s\n", subCmd)
	}
}

func handleEntry(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: timetrack entry <list|create|show|submit|approve|reject|reopen|delete>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "list":
		listEntries(args[1:])
	case "create":
		createEntry(args[1:])
	case "show":
		showEntry(args[1:])
	case "submit":
		transitionEntry("submit", args[1:], nil)
	case "approve":
		approveEntry(args[1:])
	case "reject":
		rejectEntry(args[1:])
	case "reopen":
		transitionEntry("reopen", args[1:], nil)
	case "delete":
		deleteEntry(args[1:])
	default:
		fmt.Printf("unknown entry command: %s\n", subCmd)
	}
}

func handleStats(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: timetrack stats <show|recompute>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "show":
		showStats(args[1:], false)
	case "recompute":
		showStats(args[1:], true)
	default:
		fmt.Printf("unknown stats command: %s\n", subCmd)
	}
}

func handleCompany(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: timetrack company <show|set-week>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "show":
		showCompany(args[1:])
	case "set-week":
		setCompanyWeek(args[1:])
	default:
		fmt.Printf("unknown company command: %s\n", subCmd)
	}
}

// Auth commands
func registerUser(args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	name := fs.String("name", "", "display name")
	password := fs.String("password", "", "password")
	company := fs.String("company", "", "company ID")
	manager := fs.String("manager", "", "manager user ID (optional)")

	fs.Parse(args)

	if *email == "" || *name == "" || *password == "" || *company == "" {
		fmt.Println("Error: email, name, password, and company are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{
		"email":     *email,
		"name":      *name,
		"password":  *password,
		"companyId": *company,
	}
	if *manager != "" {
		payload["managerId"] = *manager
	}

	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/auth/register", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 201 {
		fmt.Printf("✓ User registered: %s\n", *email)
		if token, ok := result["token"].(string); ok {
			saveToken(token)
		}
	} else {
		fmt.Printf("✗ Registration failed: %v\n", result)
	}
}

func loginUser(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	password := fs.String("password", "", "password")

	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: email and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"email": *email, "password": *password}
	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/auth/login", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 200 {
		if token, ok := result["token"].(string); ok {
			saveToken(token)
			fmt.Printf("✓ Logged in as: %s\n", *email)
		}
	} else {
		fmt.Printf("✗ Login failed: %v\n", result)
	}
}

func logoutUser() {
	os.Remove(tokenFile())
	fmt.Println("✓ Logged out")
}

func whoAmI() {
	token := loadToken()
	if token == "" {
		fmt.Println("Not logged in")
		return
	}
	if len(token) > 20 {
		token = token[:20]
	}
	fmt.Printf("✓ Logged in (token: %s...)\n", token)
}

// Entry commands
func listEntries(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	user := fs.String("user", "", "filter by user ID")
	week := fs.String("week", "", "filter by year-week (YYYY-WW)")
	status := fs.String("status", "", "filter by status (pending|approved|rejected)")

	fs.Parse(args)

	url := getAPIURL() + "/entries"
	sep := "?"
	for k, v := range map[string]string{"userId": *user, "yearWeek": *week, "status": *status} {
		if v != "" {
			url += sep + k + "=" + v
			sep = "&"
		}
	}

	var entries []map[string]interface{}
	if !doRequest("GET", url, nil, &entries) {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tDATE\tHOURS\tSTATUS\tSUBMITTED")
	for _, e := range entries {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\t%v\n",
			e["id"], e["userId"], e["date"], e["hours"], e["status"], e["isSubmitted"])
	}
	w.Flush()
}

func createEntry(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	date := fs.String("date", "", "entry date (YYYY-MM-DD, default today)")
	hours := fs.Float64("hours", 8, "total hours")
	regular := fs.Float64("regular", 8, "regular hours")
	overtime := fs.Float64("overtime", 0, "overtime hours")
	pto := fs.Float64("pto", 0, "PTO hours")
	unpaid := fs.Float64("unpaid", 0, "unpaid leave hours")
	timeOff := fs.String("timeoff", "", "time-off type (pto|sick|unpaid|other)")

	fs.Parse(args)

	payload := map[string]interface{}{
		"date":             *date,
		"hours":            *hours,
		"regularHours":     *regular,
		"overtimeHours":    *overtime,
		"ptoHours":         *pto,
		"unpaidLeaveHours": *unpaid,
	}
	if *timeOff != "" {
		payload["isTimeOff"] = true
		payload["timeOffType"] = *timeOff
	}

	var entry map[string]interface{}
	if !doRequest("POST", getAPIURL()+"/entries", payload, &entry) {
		return
	}
	fmt.Printf("✓ Entry created: %v (%v, %vh)\n", entry["id"], entry["date"], entry["hours"])
}

func showEntry(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: timetrack entry show <entry-id>")
		return
	}
	var entry map[string]interface{}
	if !doRequest("GET", getAPIURL()+"/entries/"+args[0], nil, &entry) {
		return
	}
	printJSON(entry)
}

func transitionEntry(op string, args []string, payload map[string]interface{}) {
	if len(args) < 1 {
		fmt.Printf("Usage: timetrack entry %s <entry-id>\n", op)
		return
	}
	var entry map[string]interface{}
	if !doRequest("POST", getAPIURL()+"/entries/"+args[0]+"/"+op, payload, &entry) {
		return
	}
	fmt.Printf("✓ Entry %v: status=%v submitted=%v\n", entry["id"], entry["status"], entry["isSubmitted"])
}

func approveEntry(args []string) {
	fs := flag.NewFlagSet("approve", flag.ExitOnError)
	overtime := fs.Bool("overtime", false, "also sign off overtime hours")
	notes := fs.String("notes", "", "manager notes")

	fs.Parse(args)
	rest := fs.Args()
	if len(rest) < 1 {
		fmt.Println("Usage: timetrack entry approve [-overtime] [-notes msg] <entry-id>")
		return
	}

	transitionEntry("approve", rest, map[string]interface{}{
		"overtimeApproved": *overtime,
		"notes":            *notes,
	})
}

func rejectEntry(args []string) {
	fs := flag.NewFlagSet("reject", flag.ExitOnError)
	notes := fs.String("notes", "", "reason for rejection (required)")

	fs.Parse(args)
	rest := fs.Args()
	if len(rest) < 1 || *notes == "" {
		fmt.Println("Usage: timetrack entry reject -notes <reason> <entry-id>")
		return
	}

	transitionEntry("reject", rest, map[string]interface{}{"notes": *notes})
}

func deleteEntry(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: timetrack entry delete <entry-id>")
		return
	}
	var entry map[string]interface{}
	if !doRequest("DELETE", getAPIURL()+"/entries/"+args[0], nil, &entry) {
		return
	}
	fmt.Printf("✓ Entry %v deleted\n", entry["id"])
}

// Stats commands
func showStats(args []string, recompute bool) {
	if len(args) < 1 {
		fmt.Println("Usage: timetrack stats <show|recompute> <user-id>")
		return
	}

	url := getAPIURL() + "/users/" + args[0] + "/stats"
	method := "GET"
	if recompute {
		url += "/recompute"
		method = "POST"
	}

	var stats map[string]interface{}
	if !doRequest(method, url, nil, &stats) {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "YTD HOURS\tWEEK HOURS\tPTO LEFT\tSICK LEFT\tRECOMPUTED")
	fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n",
		stats["ytdHoursWorked"], stats["currentWeekHours"],
		stats["ptoBalance"], stats["sickBalance"], stats["recomputedAt"])
	w.Flush()
}

// Company commands
func showCompany(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: timetrack company show <company-id>")
		return
	}
	var company map[string]interface{}
	if !doRequest("GET", getAPIURL()+"/companies/"+args[0], nil, &company) {
		return
	}
	printJSON(company)
}

func setCompanyWeek(args []string) {
	fs := flag.NewFlagSet("set-week", flag.ExitOnError)
	startDay := fs.Int("start", 1, "week start day (0=Sunday .. 6=Saturday)")
	hoursPerDay := fs.Float64("hours", 8, "working hours per day")

	fs.Parse(args)
	rest := fs.Args()
	if len(rest) < 1 {
		fmt.Println("Usage: timetrack company set-week [-start N] [-hours H] <company-id>")
		return
	}

	payload := map[string]interface{}{
		"weekConfig": map[string]interface{}{
			"startDay":    *startDay,
			"workingDays": []int{1, 2, 3, 4, 5},
			"hoursPerDay": *hoursPerDay,
		},
	}

	var company map[string]interface{}
	if !doRequest("PUT", getAPIURL()+"/companies/"+rest[0], payload, &company) {
		return
	}
	fmt.Printf("✓ Company %v week config updated\n", company["id"])
}

// Helper functions
func doRequest(method, url string, payload map[string]interface{}, out interface{}) bool {
	var body io.Reader
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return false
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	addAuthHeader(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		fmt.Printf("✗ %s %s failed (%d): %v\n", method, url, resp.StatusCode, errResp["error"])
		return false
	}

	if out != nil {
		json.NewDecoder(resp.Body).Decode(out)
	}
	return true
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func getAPIURL() string {
	if url := os.Getenv("TIMETRACK_API"); url != "" {
		return url
	}
	return "http://localhost:8080/api"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return home + "/.timetrack/token"
}

func saveToken(token string) error {
	home, _ := os.UserHomeDir()
	os.MkdirAll(home+"/.timetrack", 0700)
	return os.WriteFile(tokenFile(), []byte(token), 0600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return string(data)
}

func addAuthHeader(req *http.Request) {
	token := loadToken()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func printUsage() {
	fmt.Print(`TimeTrack CLI

Usage:
  timetrack <command> [options]

Commands:
  auth     User authentication (register, login, logout, who)
  entry    Time entry operations (list, create, show, submit, approve, reject, reopen, delete)
  stats    User aggregates (show, recompute)
  company  Company configuration (show, set-week)
  help     Show this help message

Environment Variables:
  TIMETRACK_API    API endpoint (default: http://localhost:8080/api)

Examples:
  timetrack auth register -email user@example.com -name "User" -password pass1234 -company acme
  timetrack auth login -email user@example.com -password pass1234
  timetrack entry create -date 2026-03-02 -hours 8 -regular 8
  timetrack entry submit <entry-id>
  timetrack entry approve -overtime <entry-id>
  timetrack stats show <user-id>
`)
}
