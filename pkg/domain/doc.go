/*
Package domain contains the core domain models for the Birocrat form engine.

It defines the fundamental entities of a scripted form session: Questions,
Answers, Steps, driver Outcomes, and the serializable session Snapshot. This
package is kept pure and free of external dependencies like I/O or the script
runtime, following Hexagonal Architecture principles.

# Key Entities

  - Question: A prompt the driver script wants answered (simple, multiline, select).
  - Answer: The user's response, tagged to match the question kind.
  - Step: One recorded (question, before-state, answer) unit in a session's history.
  - Outcome: The driver's decision after a poll (next question, rejection, or done).
  - Snapshot: The full serializable state of a session for persistence.
*/
package domain
