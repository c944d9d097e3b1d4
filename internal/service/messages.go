package service

import (
	"errors"
	"fmt"
	"strings"

	"standup-formstack/internal/models"
)

const (
	msgMissingToken   = "Unable to run this plugin\nCannot find the Formstack token"
	msgSettingUp      = "Setting up connection to form"
	msgInvalidFormID  = "The form ID entered (%s), is not a number\nPlease try again"
	msgScheduled      = "Form reminder (%s) setup in this room for %s on days %s"
	msgFormSetup      = "%s - Form has been setup"
	msgAlreadyLinked  = "There seems to be a form already linked to this room\nIf you would like to replace the current form\nplease run the remove command and then setup the new one."
	msgDontUnderstand = "I don't understand the command\nI think there is something missing, please try again"
	msgNotConfigured  = "A form is not setup for this room\nTo attach a form to this room, please use the 'Setup' command"
	msgRemoving       = "Removing form %s from this room"
	msgRemoved        = "Removed form link"
	msgStoreIssue     = "There was an issue, please have my owner check my logs"
	msgUpstream       = "Somethings not right, have my owner take a look at my logs"
	msgIncomplete     = "I was not able to find the form, Please ask my owner to check the logs"
	msgReminder       = "@here Time to fill out the <%s|stand up report>\n"
	msgRandomOn       = "Reports will now be posted in random order"
	msgRandomOff      = "Reports will now be posted in the order they were submitted"
)

// errorMessage 把错误映射为房间内可见的提示
func errorMessage(err error) string {
	var (
		incomplete *models.IncompleteFormError
		upstream   *models.UpstreamError
	)
	switch {
	case errors.Is(err, models.ErrMissingCredential):
		return msgMissingToken
	case errors.Is(err, models.ErrNotConfigured):
		return msgNotConfigured
	case errors.As(err, &incomplete):
		return msgIncomplete
	case errors.As(err, &upstream):
		return msgUpstream
	default:
		return msgStoreIssue
	}
}

// helpText 帮助信息
func helpText(botName, keyword string, hear bool) string {
	var b strings.Builder
	if hear {
		fmt.Fprintf(&b, "You can @%s or I'll listen for *%s*\n", botName, keyword)
	}
	cmd := botName + " " + keyword
	fmt.Fprintf(&b, "%s - List results of standup form for today\n", cmd)
	fmt.Fprintf(&b, "%s today - List who has filled out the standup form\n", cmd)
	fmt.Fprintf(&b, "%s <USERNAME> - List results of standup form for today\n", cmd)
	fmt.Fprintf(&b, "%s randomize - Toggle random ordering of the report\n", cmd)
	fmt.Fprintf(&b, "%s remove - Remove form configuration from the room\n", cmd)
	fmt.Fprintf(&b, "%s setup FORMID TIME REMINDER CRONDAYS - Setup the script for the first time\n", cmd)
	b.WriteString("\tFORMID - Formstack Form ID\n")
	b.WriteString("\tTIME - Time of auto post (8:00am or 14:00)\n")
	b.WriteString("\tREMINDER - Number of minutes before to send reminder (15) Default 30\n")
	b.WriteString("\tCRONDAYS - Days to post in cron format (1-5 or 0,1,2,3) 0 = Sunday. Default 1-5 (weekdays)\n")
	b.WriteString("\tReminder and crondays can be skipped to accept defaults")
	return b.String()
}
