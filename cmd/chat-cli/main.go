package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"symptom-checker/internal/checker"
	"symptom-checker/internal/consultation"
)

var (
	baseURL = apiURL()
	reader  = bufio.NewReader(os.Stdin)
	client  = &http.Client{Timeout: 90 * time.Second}
)

func apiURL() string {
	if u := os.Getenv("SYMPTOM_API_URL"); u != "" {
		return strings.TrimRight(u, "/")
	}
	return "http://localhost:8080/api"
}

func main() {
	fmt.Println("Welcome to the Symptom Checker CLI")
	for {
		printMainMenu()
	}
}

func printMainMenu() {
	fmt.Println("\n=== Main Menu ===")
	fmt.Println("1. Start Chat Consultation")
	fmt.Println("2. Symptom Checker Form")
	fmt.Println("3. Exit")
	fmt.Print("> ")

	choice, err := reader.ReadString('\n')
	if err != nil {
		os.Exit(0)
	}

	switch strings.TrimSpace(choice) {
	case "1":
		handleChat()
	case "2":
		handleForm()
	case "3":
		fmt.Println("Goodbye!")
		os.Exit(0)
	default:
		fmt.Println("Invalid choice")
	}
}

func prompt(label string) string {
	fmt.Print(label)
	input, err := reader.ReadString('\n')
	if err != nil {
		os.Exit(0)
	}
	return strings.TrimSpace(input)
}

func handleChat() {
	var c consultation.Consultation
	if err := call(http.MethodPost, "/consultations", nil, http.StatusCreated, &c); err != nil {
		fmt.Printf("Failed to start consultation: %v\n", err)
		return
	}
	fmt.Printf("Consultation started: %s\n", c.ID)
	fmt.Println("Commands: ?<text> suggestions, /symptoms, /remove <symptom>, /reset, /report, /exit")
	shown := printNewMessages(c.Messages, 0)

	base := "/consultations/" + c.ID.String()
	for {
		msg := prompt("You: ")
		switch {
		case msg == "":
			continue
		case msg == "/exit":
			return
		case strings.HasPrefix(msg, "?"):
			var resp consultation.SuggestResponse
			err := call(http.MethodPost, base+"/suggestions", consultation.SuggestRequest{Input: msg[1:]}, http.StatusOK, &resp)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			if len(resp.Suggestions) == 0 {
				fmt.Println("No suggestions")
				continue
			}
			fmt.Printf("Suggestions: %s\n", strings.Join(resp.Suggestions, ", "))
			continue
		case msg == "/symptoms":
			if err := call(http.MethodGet, base, nil, http.StatusOK, &c); err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			printSymptoms(c.Symptoms)
			continue
		case strings.HasPrefix(msg, "/remove "):
			symptom := strings.TrimSpace(strings.TrimPrefix(msg, "/remove "))
			if err := call(http.MethodDelete, base+"/symptoms/"+url.PathEscape(symptom), nil, http.StatusOK, &c); err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			printSymptoms(c.Symptoms)
			continue
		case msg == "/reset":
			if err := call(http.MethodPost, base+"/reset", nil, http.StatusOK, &c); err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			shown = printNewMessages(c.Messages, 0)
			continue
		case msg == "/report":
			if err := call(http.MethodPost, base+"/report/send", nil, http.StatusNoContent, nil); err != nil {
				fmt.Printf("Failed to send report: %v\n", err)
				continue
			}
			fmt.Println("Report sent to the doctor")
			continue
		}

		fmt.Println("Bot is typing...")
		if err := call(http.MethodPost, base+"/messages", consultation.SendMessageRequest{Text: msg}, http.StatusOK, &c); err != nil {
			fmt.Printf("Error sending message: %v\n", err)
			continue
		}
		shown = printNewMessages(c.Messages, shown)
	}
}

func printNewMessages(messages []consultation.Message, from int) int {
	for i := from; i < len(messages); i++ {
		m := messages[i]
		if m.Role != consultation.RoleBot {
			continue
		}
		fmt.Printf("Bot: %s\n", m.Text)
	}
	return len(messages)
}

func printSymptoms(symptoms []string) {
	if len(symptoms) == 0 {
		fmt.Println("No symptoms collected yet")
		return
	}
	for i, s := range symptoms {
		fmt.Printf("%d. %s\n", i+1, s)
	}
}

func handleForm() {
	var f checker.Form
	if err := call(http.MethodPost, "/checkers", nil, http.StatusCreated, &f); err != nil {
		fmt.Printf("Failed to create form: %v\n", err)
		return
	}
	fmt.Println("Commands: ?<text> suggestions, add <symptom>, del <n>, predict, exit")

	base := "/checkers/" + f.ID.String()
	for {
		cmd := prompt("Form: ")
		switch {
		case cmd == "":
			continue
		case cmd == "exit":
			return
		case strings.HasPrefix(cmd, "?"):
			var resp checker.InputResponse
			if err := call(http.MethodPost, base+"/input", checker.InputRequest{Input: cmd[1:]}, http.StatusOK, &resp); err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			fmt.Printf("Suggestions: %s\n", strings.Join(resp.Suggestions, ", "))
		case strings.HasPrefix(cmd, "add "):
			req := checker.AddSymptomRequest{Symptom: strings.TrimPrefix(cmd, "add ")}
			if err := call(http.MethodPost, base+"/symptoms", req, http.StatusOK, &f); err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			printSymptoms(f.Symptoms)
		case strings.HasPrefix(cmd, "del "):
			var n int
			if _, err := fmt.Sscanf(strings.TrimPrefix(cmd, "del "), "%d", &n); err != nil {
				fmt.Println("Usage: del <n>")
				continue
			}
			if err := call(http.MethodDelete, fmt.Sprintf("%s/symptoms/%d", base, n-1), nil, http.StatusOK, &f); err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			printSymptoms(f.Symptoms)
		case cmd == "predict":
			fmt.Println("Predicting...")
			if err := call(http.MethodPost, base+"/predict", nil, http.StatusOK, &f); err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			fmt.Printf("Result: %s\n", f.Result)
		default:
			fmt.Println("Unknown command")
		}
	}
}

// call sends body as JSON and decodes the response into out when the status matches.
func call(method, path string, body any, wantStatus int, out any) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
