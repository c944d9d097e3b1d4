package report

import "fmt"

// fillerMessages 定时报告没有任何提交时随机发送的一条
func fillerMessages(botName, today string) []string {
	return []string{
		"Sooooo... Is everyone on holiday?",
		"Nothing? Was it something I said?",
		"Do you wanna build a snowman?... It doesn't have to be snowman... OK, bye",
		":notes:Here I go agian on my own!:notes:\n\tGoing down the only road I've ever know!:notes:",
		"Bueller? Bueller?... Bueller?....... Bueller?",
		"https://media.giphy.com/media/jNH0Bto1xBNwQ/giphy.gif",
		"Today was a day off wasn't it?... I wish I had a day off",
		"Great! I'm going back to sleep",
		fmt.Sprintf(":rotating_light: %s dance party!! :rotating_light: \n\thttps://media.giphy.com/media/v0YiARQxj1yc8/giphy.gif", botName),
		fmt.Sprintf("*%s* - %s\n\t*_Yesterday:_*\n\t- Report Standup\n\t- Answer Questions\n\t- Other duties as assigned"+
			"\n\t*_Today:_*\n\t- Report Standup\n\t- Answer Questions\n\t- Other duties as assigned"+
			"\n\t*_Blockers:_*\n\t- No one is here", botName, today),
	}
}
