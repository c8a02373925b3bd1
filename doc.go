/*
Package birocrat is a session engine for dynamic, branching question-and-answer
forms whose flow is decided by an embedded Lua driver script.

The script is a pure decision function: given an opaque state and the latest
answer, it returns the next question, a validation rejection, or the finished
result. The engine owns everything else: the history of questions and answers,
re-answering earlier questions with automatic truncation of now-stale later
answers, and an answer cache that survives truncation so revisited questions
come pre-filled.

# Concept

Because the driver is pure and its states are kept serialized between calls,
any prefix of a session's history is replayable: rewinding is just truncating
the record and handing the driver the state it produced back then. This makes
sessions trivially persistable and resumable, and it is why branches abandoned
by a rewind cost nothing to walk again.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/birocrat"
		"github.com/aretw0/birocrat/pkg/domain"
	)

	func main() {
		form, err := birocrat.NewFromFile("survey.lua")
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		poll, err := form.Start(ctx)
		if err != nil {
			log.Fatal(err)
		}

		// Main loop: show question, read answer, progress.
		for !poll.Done {
			if poll.Rejection != "" {
				fmt.Println(poll.Rejection)
			} else {
				fmt.Println(poll.Question.Prompt)
			}

			// In a real app this comes from the user.
			answer := domain.TextAnswer("42")

			poll, err = form.Answer(ctx, answer)
			if err != nil {
				log.Fatal(err)
			}
		}

		fmt.Printf("result: %s\n", poll.Result)
	}

Interactive surfaces are provided on top of this loop: a terminal runner
(pkg/runner), an HTTP API and an MCP server (pkg/adapters), and a CLI
(cmd/birocrat). Session persistence lives in pkg/session with filesystem,
Redis, and in-memory stores.
*/
package birocrat
