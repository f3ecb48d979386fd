package fixer

import "strings"

// componentContent picks a template for a new component. Archetype
// templates are matched by case-insensitive substring against the
// component name, in listed order so a name matching several rules
// always gets the same one; anything without a match gets the generic
// stub.
func componentContent(name, archetype string) string {
	lower := strings.ToLower(name)
	for _, rule := range archetypeTemplates[archetype] {
		if strings.Contains(lower, rule.match) || strings.Contains(rule.match, lower) {
			return rule.tmpl(name)
		}
	}
	return genericComponent(name)
}

type componentTemplate func(name string) string

type templateRule struct {
	match string
	tmpl  componentTemplate
}

var archetypeTemplates = map[string][]templateRule{
	"calculator": {
		{"header", calculatorHeader},
		{"content", calculatorContent},
	},
	"todo": {
		{"todoitem", todoItem},
		{"todolist", todoList},
	},
	"weather": {
		{"weathericon", weatherIcon},
		{"temperature", temperatureDisplay},
	},
}

func genericComponent(name string) string {
	return `import React from 'react';
import { View, Text, StyleSheet } from 'react-native';

const ` + name + ` = (props) => {
  return (
    <View style={styles.container}>
      <Text style={styles.text}>` + name + ` Component</Text>
      {props.children}
    </View>
  );
};

const styles = StyleSheet.create({
  container: {
    padding: 10,
    alignItems: 'center',
  },
  text: {
    fontSize: 16,
    fontWeight: 'bold',
  },
});

export default ` + name + `;
`
}

func calculatorHeader(name string) string {
	return `import React from 'react';
import { View, Text, StyleSheet } from 'react-native';

const ` + name + ` = ({ title = "Calculator", ...props }) => {
  return (
    <View style={styles.container}>
      <Text style={styles.title}>{title}</Text>
      {props.children}
    </View>
  );
};

const styles = StyleSheet.create({
  container: {
    padding: 20,
    paddingTop: 40,
    backgroundColor: '#000',
    alignItems: 'center',
  },
  title: {
    fontSize: 24,
    fontWeight: 'bold',
    color: '#fff',
  },
});

export default ` + name + `;
`
}

func calculatorContent(name string) string {
	return `import React, { useState } from 'react';
import { View, Text, StyleSheet, TouchableOpacity } from 'react-native';

const ` + name + ` = (props) => {
  const [display, setDisplay] = useState('0');
  const [operation, setOperation] = useState(null);
  const [waitingForInput, setWaitingForInput] = useState(false);

  const numbers = [
    ['C', '+/-', '%', '/'],
    ['7', '8', '9', '*'],
    ['4', '5', '6', '-'],
    ['1', '2', '3', '+'],
    ['0', '.', '=']
  ];

  const handlePress = (value) => {
    if (value === 'C') {
      setDisplay('0');
      setOperation(null);
      setWaitingForInput(false);
    } else if (['+', '-', '*', '/'].includes(value)) {
      setOperation(value);
      setWaitingForInput(true);
    } else if (value === '=') {
      setWaitingForInput(true);
    } else {
      if (waitingForInput) {
        setDisplay(value);
        setWaitingForInput(false);
      } else {
        setDisplay(display === '0' ? value : display + value);
      }
    }
  };

  return (
    <View style={styles.container}>
      <View style={styles.display}>
        <Text style={styles.displayText}>{display}</Text>
      </View>

      <View style={styles.buttonContainer}>
        {numbers.map((row, rowIndex) => (
          <View key={rowIndex} style={styles.row}>
            {row.map((button) => (
              <TouchableOpacity
                key={button}
                style={[
                  styles.button,
                  button === '0' ? styles.zeroButton : null,
                  ['/', '*', '-', '+', '='].includes(button) ? styles.operatorButton : null
                ]}
                onPress={() => handlePress(button)}
              >
                <Text style={[
                  styles.buttonText,
                  ['/', '*', '-', '+', '='].includes(button) ? styles.operatorText : null
                ]}>
                  {button}
                </Text>
              </TouchableOpacity>
            ))}
          </View>
        ))}
      </View>
      {props.children}
    </View>
  );
};

const styles = StyleSheet.create({
  container: {
    flex: 1,
    backgroundColor: '#000',
  },
  display: {
    flex: 1,
    justifyContent: 'flex-end',
    alignItems: 'flex-end',
    padding: 20,
    backgroundColor: '#000',
  },
  displayText: {
    fontSize: 64,
    color: '#fff',
    fontWeight: '200',
  },
  buttonContainer: {
    padding: 10,
  },
  row: {
    flexDirection: 'row',
    justifyContent: 'space-between',
    marginBottom: 10,
  },
  button: {
    width: 80,
    height: 80,
    borderRadius: 40,
    backgroundColor: '#333',
    justifyContent: 'center',
    alignItems: 'center',
  },
  zeroButton: {
    width: 170,
  },
  operatorButton: {
    backgroundColor: '#ff9500',
  },
  buttonText: {
    fontSize: 32,
    color: '#fff',
    fontWeight: '400',
  },
  operatorText: {
    color: '#fff',
  },
});

export default ` + name + `;
`
}

func todoItem(name string) string {
	return `import React from 'react';
import { View, Text, StyleSheet, TouchableOpacity } from 'react-native';

const ` + name + ` = ({ todo, onToggle, onDelete, ...props }) => {
  return (
    <View style={[styles.container, todo?.completed && styles.completed]}>
      <TouchableOpacity
        style={styles.textContainer}
        onPress={() => onToggle && onToggle(todo?.id)}
      >
        <Text style={[styles.text, todo?.completed && styles.completedText]}>
          {todo?.text || 'Todo item'}
        </Text>
      </TouchableOpacity>

      <TouchableOpacity
        style={styles.deleteButton}
        onPress={() => onDelete && onDelete(todo?.id)}
      >
        <Text style={styles.deleteText}>x</Text>
      </TouchableOpacity>
      {props.children}
    </View>
  );
};

const styles = StyleSheet.create({
  container: {
    flexDirection: 'row',
    alignItems: 'center',
    padding: 15,
    marginVertical: 5,
    backgroundColor: '#fff',
    borderRadius: 8,
    shadowColor: '#000',
    shadowOffset: { width: 0, height: 1 },
    shadowOpacity: 0.2,
    shadowRadius: 2,
    elevation: 2,
  },
  completed: {
    backgroundColor: '#f8f9fa',
    opacity: 0.7,
  },
  textContainer: {
    flex: 1,
  },
  text: {
    fontSize: 16,
    color: '#333',
  },
  completedText: {
    textDecorationLine: 'line-through',
    color: '#666',
  },
  deleteButton: {
    padding: 10,
    marginLeft: 10,
  },
  deleteText: {
    fontSize: 20,
    color: '#ff4757',
    fontWeight: 'bold',
  },
});

export default ` + name + `;
`
}

func todoList(name string) string {
	return `import React from 'react';
import { View, StyleSheet, ScrollView } from 'react-native';

const ` + name + ` = ({ children, ...props }) => {
  return (
    <ScrollView style={styles.container} contentContainerStyle={styles.content}>
      {children}
    </ScrollView>
  );
};

const styles = StyleSheet.create({
  container: {
    flex: 1,
    backgroundColor: '#f8f9fa',
  },
  content: {
    padding: 10,
  },
});

export default ` + name + `;
`
}

func weatherIcon(name string) string {
	return `import React from 'react';
import { View, Text, StyleSheet } from 'react-native';

const ` + name + ` = ({ condition = "sunny", size = 48, ...props }) => {
  const getWeatherIcon = (condition) => {
    const icons = {
      sunny: 'sun',
      cloudy: 'cloud',
      rainy: 'rain',
      snowy: 'snow',
      stormy: 'storm'
    };
    return icons[condition] || 'sun';
  };

  return (
    <View style={styles.container}>
      <Text style={[styles.icon, { fontSize: size }]}>
        {getWeatherIcon(condition)}
      </Text>
      {props.children}
    </View>
  );
};

const styles = StyleSheet.create({
  container: {
    alignItems: 'center',
  },
  icon: {
    fontSize: 48,
  },
});

export default ` + name + `;
`
}

func temperatureDisplay(name string) string {
	return `import React from 'react';
import { View, Text, StyleSheet } from 'react-native';

const ` + name + ` = ({ temperature = 20, unit = "C", ...props }) => {
  return (
    <View style={styles.container}>
      <Text style={styles.temperature}>
        {temperature}{unit}
      </Text>
      {props.children}
    </View>
  );
};

const styles = StyleSheet.create({
  container: {
    alignItems: 'center',
  },
  temperature: {
    fontSize: 48,
    fontWeight: 'bold',
    color: '#2c3e50',
  },
});

export default ` + name + `;
`
}

const navigationTemplate = `import React from 'react';
import { NavigationContainer } from '@react-navigation/native';
import { createStackNavigator } from '@react-navigation/stack';
import { View, Text, StyleSheet } from 'react-native';

const Stack = createStackNavigator();

const MainScreen = () => {
  return (
    <View style={styles.container}>
      <Text style={styles.text}>Main Screen</Text>
      <Text style={styles.subtitle}>Add your app content here</Text>
    </View>
  );
};

const AppNavigator = () => {
  return (
    <NavigationContainer>
      <Stack.Navigator initialRouteName="Main">
        <Stack.Screen
          name="Main"
          component={MainScreen}
          options={{ title: 'App' }}
        />
      </Stack.Navigator>
    </NavigationContainer>
  );
};

const styles = StyleSheet.create({
  container: {
    flex: 1,
    justifyContent: 'center',
    alignItems: 'center',
    backgroundColor: '#f5f5f5',
  },
  text: {
    fontSize: 24,
    fontWeight: 'bold',
    marginBottom: 10,
  },
  subtitle: {
    fontSize: 16,
    color: '#666',
  },
});

export default AppNavigator;
`
