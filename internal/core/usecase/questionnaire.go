package usecase

import (
	"fmt"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
)

// questionnaire builds the post-consent questions. The no-donation variant
// also asks why the participant declined.
func questionnaire(platform string, noDonation bool) domain.QuestionnairePrompt {
	understanding := domain.Translatable{
		"en": "How would you describe the information you shared with the researchers at the University of Amsterdam?",
		"nl": "Hoe zou u de informatie omschrijven die u heeft gedeeld met de onderzoekers van de Universiteit van Amsterdam?",
	}
	identify := domain.Translatable{
		"en": fmt.Sprintf("If you have viewed the information, to what extent do you recognize your own interactions with %s?", platform),
		"nl": fmt.Sprintf("Als u de informatie heeft bekeken, in hoeverre herkent u dan uw eigen interacties met %s?", platform),
	}
	identifyChoices := []domain.Translatable{
		{"en": fmt.Sprintf("I recognized my own interactions on %s", platform), "nl": fmt.Sprintf("Ik herkende mijn interacties met %s", platform)},
		{"en": fmt.Sprintf("I recognized my %s interactions and of those I share my account with", platform), "nl": fmt.Sprintf("Ik herkende mijn interacties met %s en die van anderen met wie ik mijn account deel", platform)},
		{"en": "I recognized mostly the interactions of those I share my account with", "nl": "Ik herkende vooral de interacties van anderen met wie ik mijn account deel"},
		{"en": "I did not look at my data", "nl": "Ik heb niet naar mijn gegevens gekeken"},
		{"en": "Other", "nl": "Anders"},
	}
	enjoyment := domain.Translatable{
		"en": "In case you looked at the data presented on this page, how interesting did you find looking at your data?",
		"nl": "Als u naar uw data hebt gekeken, hoe interessant vond u het om daar naar te kijken?",
	}
	enjoymentChoices := []domain.Translatable{
		{"en": "not at all interesting", "nl": "Helemaal niet interessant"},
		{"en": "somewhat uninteresting", "nl": "Een beetje oninteressant"},
		{"en": "neither interesting nor uninteresting", "nl": "Niet interessant, niet oninteressant"},
		{"en": "somewhat interesting", "nl": "Een beetje interessant"},
		{"en": "very interesting", "nl": "Erg interessant"},
	}
	awareness := domain.Translatable{
		"en": fmt.Sprintf("Did you know that %s collected this data about you?", platform),
		"nl": fmt.Sprintf("Wist u dat %s deze gegevens over u verzamelde?", platform),
	}
	awarenessChoices := []domain.Translatable{
		{"en": "Yes", "nl": "Ja"},
		{"en": "No", "nl": "Nee"},
	}
	comments := domain.Translatable{
		"en": "Do you have any additional comments about the donation? Please add them here.",
		"nl": "Heeft u nog andere opmerkingen? Laat die hier achter.",
	}

	questions := []domain.Question{
		{ID: 1, Kind: domain.QuestionOpen, Question: understanding},
		{ID: 2, Kind: domain.QuestionMultipleChoice, Question: identify, Choices: identifyChoices},
		{ID: 3, Kind: domain.QuestionMultipleChoice, Question: enjoyment, Choices: enjoymentChoices},
		{ID: 4, Kind: domain.QuestionMultipleChoice, Question: awareness, Choices: awarenessChoices},
	}
	if noDonation {
		questions = append(questions, domain.Question{ID: 6, Kind: domain.QuestionOpen, Question: domain.Translatable{
			"en": "What is/are the reason(s) that you decided not to share your data?",
			"nl": "Wat is de reden dat u er voor gekozen hebt uw data niet te delen?",
		}})
	}
	questions = append(questions, domain.Question{ID: 5, Kind: domain.QuestionOpen, Question: comments})

	return domain.QuestionnairePrompt{
		Description: domain.Translatable{
			"en": "Below you can find a couple of questions about the data donation process",
			"nl": "Hieronder vind u een paar vragen over het data donatie process",
		},
		Questions: questions,
	}
}
