package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// cliSessionState mirrors the server's session state payload.
type cliSessionState struct {
	ID             string `json:"id"`
	Phase          string `json:"phase"`
	Mode           string `json:"mode"`
	QuestionsAsked int    `json:"questions_asked"`
	Answered       int    `json:"answered"`
	TrialCap       bool   `json:"trial_cap_reached"`
	OverallScore   int    `json:"overall_score"`
	Question       *struct {
		ID         int      `json:"id"`
		Text       string   `json:"text"`
		Type       string   `json:"type"`
		Difficulty string   `json:"difficulty"`
		Tips       []string `json:"tips"`
	} `json:"question"`
	Feedback *cliFeedback `json:"feedback"`
	Report   *cliReport   `json:"report"`
}

type cliFeedback struct {
	Score        int      `json:"score"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	SampleAnswer string   `json:"sample_answer"`
}

type cliReport struct {
	OverallScore    int            `json:"overall_score"`
	ByType          map[string]int `json:"by_type"`
	ByDifficulty    map[string]int `json:"by_difficulty"`
	StrongCount     int            `json:"strong_count"`
	BorderlineCount int            `json:"borderline_count"`
	WeakCount       int            `json:"weak_count"`
	Strengths       []string       `json:"strengths"`
	Improvements    []string       `json:"improvements"`
	QuestionsAsked  int            `json:"questions_asked"`
	Answered        int            `json:"answered"`
}

// --- practice ---

var practiceCmd = &cobra.Command{
	Use:   "practice",
	Short: "Run an interactive practice session",
	Long: `Run an interactive mock interview in the terminal.

Type your answer and finish it with an empty line. During a session:
  /skip  skip the current question
  /end   end the session and show the report

Examples:
  prepflow practice --job-title "Backend Engineer" --job-file ./posting.txt --resume ./cv.txt
  prepflow practice --job-title "SRE" --job-description "..." --resume-id 4f7c... --round technical_round_1 --level hard`,
	RunE: func(cmd *cobra.Command, args []string) error {
		jobTitle, _ := cmd.Flags().GetString("job-title")
		jobDescription, _ := cmd.Flags().GetString("job-description")
		jobFile, _ := cmd.Flags().GetString("job-file")
		round, _ := cmd.Flags().GetString("round")
		level, _ := cmd.Flags().GetString("level")
		skillsStr, _ := cmd.Flags().GetString("skills")
		resumeFile, _ := cmd.Flags().GetString("resume")
		resumeID, _ := cmd.Flags().GetString("resume-id")

		if jobDescription == "" && jobFile != "" {
			data, err := os.ReadFile(jobFile)
			if err != nil {
				return fmt.Errorf("reading job file: %w", err)
			}
			jobDescription = string(data)
		}

		setup := map[string]any{
			"job_title":       jobTitle,
			"job_description": jobDescription,
			"round":           round,
			"level":           level,
		}
		if skillsStr != "" {
			skills := strings.Split(skillsStr, ",")
			for i := range skills {
				skills[i] = strings.TrimSpace(skills[i])
			}
			setup["skills"] = skills
		}
		switch {
		case resumeID != "":
			setup["resume_id"] = resumeID
		case resumeFile != "":
			data, err := os.ReadFile(resumeFile)
			if err != nil {
				return fmt.Errorf("reading resume: %w", err)
			}
			setup["resume_text"] = string(data)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runPractice(cmd.Context(), client, setup, os.Stdin)
	},
}

func init() {
	practiceCmd.Flags().String("job-title", "", "target job title")
	practiceCmd.Flags().String("job-description", "", "job posting text")
	practiceCmd.Flags().String("job-file", "", "file with the job posting")
	practiceCmd.Flags().String("round", "hr", "interview round (managerial, technical_round_1, technical_round_2, hr)")
	practiceCmd.Flags().String("level", "medium", "difficulty level (easy, medium, hard, god)")
	practiceCmd.Flags().String("skills", "", "comma-separated skills to practice")
	practiceCmd.Flags().String("resume", "", "resume file (plain text)")
	practiceCmd.Flags().String("resume-id", "", "ID of a previously imported resume")
}

func runPractice(ctx context.Context, client *apiClient, setup map[string]any, input *os.File) error {
	resp, err := client.post(ctx, "/v1/sessions", setup)
	if err != nil {
		return err
	}
	var st cliSessionState
	if err := decodeJSON(resp, &st); err != nil {
		return err
	}
	sessionID := st.ID

	resp, err = client.post(ctx, "/v1/sessions/"+sessionID+"/start", nil)
	if err != nil {
		return err
	}
	if err := decodeJSON(resp, &st); err != nil {
		return err
	}

	if st.Mode == "ai" {
		printStep("Connected to the hosted interviewer")
	} else {
		printStep("Using the built-in question bank (%d questions)", st.QuestionsAsked)
	}

	reader := bufio.NewReader(input)
	for st.Phase == "practice" && st.Question != nil {
		printQuestion(st)

		answer, command, err := readAnswer(reader)
		if err != nil {
			return err
		}

		var path string
		var body any
		switch command {
		case "/skip":
			path = "/v1/sessions/" + sessionID + "/skip"
		case "/end":
			path = "/v1/sessions/" + sessionID + "/end"
		default:
			path = "/v1/sessions/" + sessionID + "/answer"
			body = map[string]string{"text": answer}
		}

		resp, err := client.post(ctx, path, body)
		if err != nil {
			return err
		}
		var next cliSessionState
		if err := decodeJSON(resp, &next); err != nil {
			return err
		}

		if next.Feedback != nil {
			printFeedback(next.Feedback)
		}
		if next.TrialCap {
			printWarning("Trial time limit reached — upgrade to keep practicing. Ending session.")
			endResp, err := client.post(ctx, "/v1/sessions/"+sessionID+"/end", nil)
			if err != nil {
				return err
			}
			if err := decodeJSON(endResp, &next); err != nil {
				return err
			}
		}
		st = next
	}

	if st.Report != nil {
		printReport(st.Report)
	} else {
		// Session finished without an explicit /end (all questions answered).
		resp, err := client.get(ctx, "/v1/sessions/"+sessionID+"/report")
		if err != nil {
			return err
		}
		var rep cliReport
		if err := decodeJSON(resp, &rep); err != nil {
			return err
		}
		printReport(&rep)
	}
	return nil
}

// readAnswer collects lines until a blank one. A leading /skip or /end is a
// command, not an answer.
func readAnswer(reader *bufio.Reader) (answer, command string, err error) {
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		if err != nil && len(lines) == 0 && strings.TrimSpace(line) == "" {
			return "", "/end", nil // EOF with nothing typed
		}
		trimmed := strings.TrimSpace(line)
		if len(lines) == 0 && (trimmed == "/skip" || trimmed == "/end") {
			return "", trimmed, nil
		}
		if trimmed == "" {
			if len(lines) > 0 {
				return strings.Join(lines, " "), "", nil
			}
			if err != nil {
				return "", "/end", nil
			}
			continue
		}
		lines = append(lines, trimmed)
		if err != nil {
			return strings.Join(lines, " "), "", nil
		}
	}
}

func printQuestion(st cliSessionState) {
	q := st.Question
	header := fmt.Sprintf("Question %d", q.ID)
	if st.Mode != "ai" {
		header = fmt.Sprintf("Question %d of %d", q.ID, st.QuestionsAsked)
	}
	fmt.Printf("\n%s  [%s, %s]\n%s\n", colorize(colorBold, header), q.Type, q.Difficulty, q.Text)
	for _, tip := range q.Tips {
		fmt.Printf("  %s %s\n", colorize(colorCyan, "tip:"), tip)
	}
	fmt.Println()
}

func printFeedback(fb *cliFeedback) {
	fmt.Printf("\n%s %s\n", colorize(colorBold, "Score:"), colorize(scoreColor(fb.Score), fmt.Sprintf("%d/100", fb.Score)))
	for _, s := range fb.Strengths {
		fmt.Printf("  %s %s\n", colorize(colorGreen, "+"), s)
	}
	for _, s := range fb.Improvements {
		fmt.Printf("  %s %s\n", colorize(colorYellow, "-"), s)
	}
	if fb.SampleAnswer != "" {
		fmt.Printf("  %s %s\n", colorize(colorBold, "Sample:"), fb.SampleAnswer)
	}
}

func printReport(rep *cliReport) {
	fmt.Printf("\n%s\n", colorize(colorBold, "=== Session Report ==="))
	fmt.Printf("Overall: %s  (%d/%d answered)\n",
		colorize(scoreColor(rep.OverallScore), fmt.Sprintf("%d/100", rep.OverallScore)),
		rep.Answered, rep.QuestionsAsked)
	fmt.Printf("Strong: %d  Borderline: %d  Weak: %d\n", rep.StrongCount, rep.BorderlineCount, rep.WeakCount)
	for typ, score := range rep.ByType {
		fmt.Printf("  %-12s %d\n", typ, score)
	}
	if len(rep.Strengths) > 0 {
		fmt.Println(colorize(colorGreen, "Strengths:"))
		for _, s := range rep.Strengths {
			fmt.Printf("  + %s\n", s)
		}
	}
	if len(rep.Improvements) > 0 {
		fmt.Println(colorize(colorYellow, "Work on:"))
		for _, s := range rep.Improvements {
			fmt.Printf("  - %s\n", s)
		}
	}
}

// --- sessions ---

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Browse past practice sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List completed sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/sessions")
		if err != nil {
			return err
		}
		var sessions []struct {
			ID           string `json:"id"`
			CreatedAt    string `json:"created_at"`
			Mode         string `json:"mode"`
			OverallScore int    `json:"overall_score"`
			Status       string `json:"status"`
		}
		if err := decodeJSON(resp, &sessions); err != nil {
			return err
		}

		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}
		for _, s := range sessions {
			fmt.Printf("%s  %s  %-5s  %s\n",
				colorize(colorCyan, s.ID[:8]),
				s.CreatedAt,
				s.Mode,
				colorize(scoreColor(s.OverallScore), fmt.Sprintf("%3d/100", s.OverallScore)),
			)
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single session as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/sessions/"+args[0])
		if err != nil {
			return err
		}
		var sess any
		if err := decodeJSON(resp, &sess); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sess)
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
}

// --- resumes ---

var resumesCmd = &cobra.Command{
	Use:   "resumes",
	Short: "Manage stored resumes",
}

var resumesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a resume from a text file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading resume: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/resumes", map[string]string{
			"name": args[0],
			"text": string(data),
		})
		if err != nil {
			return err
		}
		var rec struct {
			ID string `json:"id"`
		}
		if err := decodeJSON(resp, &rec); err != nil {
			return err
		}

		printSuccess("Imported resume %s", rec.ID)
		return nil
	},
}

var resumesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored resumes",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/resumes")
		if err != nil {
			return err
		}
		var resumes []struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			Source    string `json:"source"`
			CreatedAt string `json:"created_at"`
		}
		if err := decodeJSON(resp, &resumes); err != nil {
			return err
		}

		if len(resumes) == 0 {
			fmt.Println("No resumes found.")
			return nil
		}
		for _, r := range resumes {
			fmt.Printf("%s  %-10s  %s\n", colorize(colorCyan, r.ID[:8]), r.Source, r.Name)
		}
		return nil
	},
}

func init() {
	resumesCmd.AddCommand(resumesImportCmd)
	resumesCmd.AddCommand(resumesListCmd)
}
