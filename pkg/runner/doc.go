/*
Package runner implements the interactive execution loop for a form.

It bridges the session engine and the outside world: presenting questions,
reading answers, relaying driver rejections, handling the ":back" rewind
command, and optionally persisting a snapshot after every accepted answer.

I/O is pluggable through the IOHandler strategy. TextHandler provides the
interactive terminal experience; JSONHandler speaks newline-delimited JSON
for automation.

# Usage

	form, err := birocrat.NewFromFile("survey.lua")
	if err != nil {
		log.Fatal(err)
	}

	r := runner.New(form,
		runner.WithHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)

	result, err := r.Run(ctx)
	if err != nil {
		log.Fatal(err)
	}
*/
package runner
