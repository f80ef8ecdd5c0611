// remsync keeps a Taskwarrior database and a reminders store in
// agreement, in both directions.
package main

func main() {
	Execute()
}
