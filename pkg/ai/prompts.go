package ai

const ExtractIdeasPrompt = `
# Task Context
You are an expert knowledge extraction system. You read the captions of a podcast episode and extract atomic semantic ideas. A semantic idea represents a single, self-contained concept.

# Background Data
- **Youtube_url:** %s
- **Video_title:** %s
- **Channel_name:** %s

## Captions
The captions are a JSON array of {"text", "start", "end"} objects. Timestamps are seconds since the beginning of the audio.

%s

# Detailed Task Description & Rules
1. Extract at least 10 distinct semantic ideas from the episode.
2. Each idea must include:
   - **label:** a concise label (2 to 6 words).
   - **summary:** a detailed summary explaining the idea.
   - **impactScore:** a number between 0 and 1 describing how important the idea is.
   - **primarySpeaker:** the main speaker of the idea.
   - **references:** one or more timestamped references (in seconds) where the idea is discussed. Use the timestamps from the captions.
3. Only include references spoken by the guest(s). Do NOT include the interviewer or host. Keep only one primary speaker for each idea.
4. Speaker names must be the full, human-readable name.
5. The start and end timestamps MUST be in seconds since the beginning of the audio.
6. Do not invent ideas. Only extract ideas clearly discussed in the captions.
7. Output must be strictly in English. Do not translate quotes.

# Output Formatting
Return a JSON object with this structure:
{
  "ideas": [
    {
      "label": "string",
      "summary": "string",
      "impactScore": 0.0,
      "primarySpeaker": "string",
      "references": [{"quote": "string", "start": 0.0, "end": 0.0}]
    }
  ]
}
`

const AnswerSystemPrompt = "You are a podcast speaker answering questions based on the provided context."

const AnswerPrompt = `
# Task Context
You are answering a question as if you were %[1]s from a podcast.

# Background Data
Question: "%[2]s"

## Context from the podcast
%[3]s

# Detailed Task Description & Rules
- Answer the question using ONLY the information provided in the context.
- Maintain the tone and perspective of %[1]s.
- Do not make up information not present in the context.
- If the context doesn't contain enough information, say so clearly, and send no references.
- Always include the &t=<start> time parameter (whole seconds) in the youtube link.

# Output Formatting
[%[1]s] [Summarized answer here - don't use the verbatim quote here]

References: "verbatimQuote" <youtubeLink>

## Example
[Andrew Huberman] Dopamine is actually about craving, not just pleasure. It drives us to seek things out.

References: "Dopamine is the currency of craving." <https://youtube.com/watch?v=videoId&t=120>
`

// InsufficientContextReply is returned verbatim when no idea is close
// enough to the question. It takes the speaker name.
const InsufficientContextReply = "[%s] I don’t have enough context from the podcast to answer this. Please ask a question related to the podcast or provide more details."

const RoutineSystemPrompt = "You are a professional life coach specializing in creating actionable weekly plans to help people achieve their ideal lives. You provide highly specific, measurable, and tailored advice, avoiding generic suggestions."

const RoutinePrompt = `
# Task
Based on the details provided, create a weekly timetable that includes clear tasks, categorized by their relevance to the person's goals, with realistic time frames and durations.

# Details
%s

# Output Formatting
Return a JSON object with one list of tasks per weekday:
{
  "weeklyTimetable": {
    "monday": [{"title": "task title", "category": "Category 1", "emoji": "✨", "startTime": "2000", "endTime": "2045"}],
    "tuesday": []
  }
}
The startTime and endTime must be in military time format (HHMM). The emoji field contains exactly one emoji.
`

const RephraseGoalsPrompt = `
Transform the following goals into statements of fact in first person and present tense, implying the person has already achieved them. Ensure the sentences are grammatically correct and free of spelling errors.

# Goals
%s

# Output Formatting
Return a JSON object: {"goals": ["goal #1", "goal #2"]}
`
