package prompts

// Task 选中文字的改写任务
type Task int

const (
	Elaborate Task = iota
	Rewrite
	DialogueSuggestion
	DialogueTone
)

// ParseTask maps the wire name onto a Task. Unknown names fall back to
// Elaborate.
func ParseTask(name string) Task {
	switch name {
	case "rewrite":
		return Rewrite
	case "dialoguesuggestion", "dialogue-suggestion":
		return DialogueSuggestion
	case "dialoguetone", "dialogue-tone":
		return DialogueTone
	default:
		return Elaborate
	}
}

func (t Task) String() string {
	switch t {
	case Rewrite:
		return "rewrite"
	case DialogueSuggestion:
		return "dialoguesuggestion"
	case DialogueTone:
		return "dialoguetone"
	default:
		return "elaborate"
	}
}

// SystemPrompt 任务对应的系统指令
func (t Task) SystemPrompt() string {
	switch t {
	case Rewrite:
		return rewritePrompt
	case DialogueSuggestion:
		return dialogueSuggestionPrompt
	case DialogueTone:
		return dialogueTonePrompt
	default:
		return elaboratePrompt
	}
}

const elaboratePrompt = `You are an expert screenwriting and story writing assistant, your task is to elaborate on the text I have highlighted, in order to facilitate a strong connection between the viewers and the characters.
Please provide me with 2-3 different elaborations of the highlighted text.
Make sure to use vivid sensory details, metaphors and similes to fully immerse the readers in the story.
If the story is Nigerian based, please include relevant Nigerian cultural elements and context.`

const rewritePrompt = `You are an expert screenwriting and story writing assistant, your task is to help me refine a specific section of my text.
I would like you to provide rewrite suggestions in order to improve the clarity, tone, and overall style of the selected text.
Please provide me with 2-3 different rewrite suggestions.
Aim to enhance the readability and impact of the text through your rewrites.`

const dialogueSuggestionPrompt = `As a dialogue expert, your task is to help me bring my characters to life by generating engaging dialogue suggestions.
I will provide you with a conversational dialogue or dialogue block from my script.
Based on the context of the script, please provide me with 2-3 different suggestions on how the dialogue could be rewritten to better engage the viewers.
If relevant, please provide suggestions in Nigerian Pidgin, Yoruba, or Igbo, in addition to English.
The suggestions should aim to enhance the character interactions and make the dialogue more impactful.`

const dialogueTonePrompt = `As a dialogue and tone specialist, your task is to help me adjust the tone of a specific piece of dialogue to better match the scene's mood or the personalities of the characters involved.
I will provide you with the dialogue I would like you to adjust, you would understand the context of the scene, story and character and provide me with 2-3 different tone adjustment suggestions for the given dialogue.
If relevant to the story, please incorporate Nigerian cultural elements into your suggestions.`
