// Package schema provides the built-in club registration questionnaire and loads
// externalised questionnaires from JSON.
package schema

import (
	"slices"

	"github.com/BTreeMap/RegFlow/internal/models"
)

// Greeting and Completion messages of the built-in questionnaire.
const (
	DefaultGreeting   = "Welcome to the 8-Squared Club! I'm here to help you register. Let's get started!"
	DefaultCompletion = "🎉 Registration complete! Thank you for joining 8-Squared. Your data has been saved. We'll contact you soon!"
)

// Departments offered for the primary and secondary department questions.
var Departments = []string{
	"Human Resources",
	"Media & Design",
	"Events & Logistics",
	"External Relations",
	"Training & Coaching",
}

// Default returns the built-in chess club questionnaire. Each call returns a fresh copy.
func Default() models.Schema {
	return models.Schema{
		Greeting:   DefaultGreeting,
		Completion: DefaultCompletion,
		Questions: []models.Question{
			// personal information
			{
				ID: "first_name", Prompt: "What is your First Name?", Kind: models.KindText,
				Placeholder: "Type your first name here...", Required: true,
			},
			{
				ID: "last_name", Prompt: "What is your Last Name?", Kind: models.KindText,
				Placeholder: "Type your last name here...", Required: true,
			},
			{
				ID: "email", Prompt: "What is your Email Address?", Kind: models.KindText,
				Placeholder: "example@email.com", Required: true,
				Validators: []models.Validator{{Kind: models.ValidatorEmail, Message: "Please enter a valid email address"}},
			},
			{
				ID: "phone_number", Prompt: "What is your Phone Number?", Kind: models.KindText,
				Placeholder: "e.g., +213 555 123 456", Skippable: true,
				Validators: []models.Validator{{Kind: models.ValidatorPhone, Min: models.IntPtr(8), Message: "Please enter a valid phone number"}},
			},
			{
				ID: "school", Prompt: "Which School or Institution do you attend?", Kind: models.KindSingleChoice,
				Options: []string{"NHSM", "ENSIA", "NHSCS", "NHSAST", "ENSNN", "Other"}, Required: true,
			},
			{
				ID: "school_other", Prompt: "Please specify your School or Institution", Kind: models.KindText,
				Placeholder: "Type your school name here...", Required: true,
				Rule: models.Equals("school", "Other"),
			},

			// skills and interests
			{
				ID: "skills", Prompt: "Which of these skills do you have or would like to develop? (Select all that apply)",
				Kind: models.KindMultiChoice, Required: true,
				Options: []string{
					"Video Editing",
					"Photography",
					"Communication / Public Speaking",
					"Graphic Design",
					"Event Management",
					"Coaching or Teaching",
					"Social Media Management",
					"Other",
				},
			},
			{
				ID: "skills_other", Prompt: "Please specify other skills", Kind: models.KindText,
				Placeholder: "Type your other skills here...", Required: true,
				Rule: models.Contains("skills", "Other"),
			},
			{
				ID: "help_interest", Prompt: "Would you be interested in helping with tournaments or teaching beginners?",
				Kind: models.KindSingleChoice, Required: true,
				Options: []string{
					"Yes, I'd love to help organize tournaments",
					"Yes, I'd love to teach or mentor beginners",
					"Maybe later",
					"Not right now",
				},
			},
			{
				ID: "primary_department", Prompt: "Which department would you like to join first?",
				Kind: models.KindSingleChoice, Required: true, Options: slices.Clone(Departments),
			},
			{
				ID: "secondary_department", Prompt: "Which department would be your second choice?",
				Kind: models.KindSingleChoice, Skippable: true, Options: slices.Clone(Departments),
				ExcludeAnswerOf: "primary_department",
			},

			// motivation and experience
			{
				ID: "motivation", Prompt: "What inspired you to join 8-Squared Chess Club?", Kind: models.KindText,
				Placeholder: "Tell us briefly what drew you to our club or chess in general...", Required: true,
			},
			{
				ID: "chess_level", Prompt: "What is your Chess Level?", Kind: models.KindSingleChoice, Required: true,
				Options: []string{
					"New to the Game",
					"Beginner",
					"Intermediate",
					"Advanced",
					"Expert",
					"Master / Competitive Player",
				},
			},
			{
				ID: "chess_username", Prompt: "What is your Chess.com Username?", Kind: models.KindText,
				Placeholder: "Your Chess.com username...", Skippable: true,
			},
			{
				ID: "elo_rating", Prompt: "What is your ELO Rating?", Kind: models.KindText,
				Placeholder: "e.g., 1200, 1500, 1800...", Skippable: true,
				Validators: []models.Validator{{
					Kind: models.ValidatorNumberRange, Min: models.IntPtr(0), Max: models.IntPtr(3500),
					Message: "Please enter a valid ELO rating (0-3500)",
				}},
			},

			// chess personality
			{
				ID: "favorite_piece", Prompt: "What's your favorite chess piece, and why?", Kind: models.KindText,
				Placeholder: `Example: "The Knight, because I like surprising my opponent!"`, Skippable: true,
			},

			// availability
			{
				ID: "availability", Prompt: "When are you usually available to participate in club activities? (Select all that apply)",
				Kind: models.KindMultiChoice, Required: true,
				Options: []string{
					"Weekdays (after school)",
					"Weekends",
					"Evenings only",
					"Online events",
					"Flexible / depends on the week",
				},
			},

			// feedback
			{
				ID: "feedback", Prompt: "Do you have any suggestions, ideas, or expectations for 8-Squared?", Kind: models.KindText,
				Placeholder: "We value your opinion!", Skippable: true,
			},
		},
	}
}
